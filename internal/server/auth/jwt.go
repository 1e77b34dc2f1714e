// Package auth mints and verifies the signed, time-bound tokens of a token
// pair. Access and refresh tokens use independent HMAC keys, lifetimes and
// audiences, so a token of one kind never verifies as the other.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects the key/lifetime namespace of a token.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the verified payload of a token. Email is captured at mint time
// and is not revalidated against the current record.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// KeyConfig is the secret and lifetime of one token kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Config holds both namespaces. Issuer is optional.
type Config struct {
	Access  KeyConfig
	Refresh KeyConfig
	Issuer  string
	// Now is overridable in tests.
	Now func() time.Time
}

type namespace struct {
	secret   []byte
	ttl      time.Duration
	audience string
}

// Signer issues and verifies tokens. It is safe for concurrent use.
type Signer struct {
	ns     [2]namespace
	issuer string
	now    func() time.Time
}

var ErrSignerConfig = errors.New("invalid signer configuration")

// NewSigner validates cfg. Both secrets are required and must differ.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Access.Secret) == 0 || len(cfg.Refresh.Secret) == 0 {
		return nil, fmt.Errorf("%w: access and refresh secrets are required", ErrSignerConfig)
	}
	if string(cfg.Access.Secret) == string(cfg.Refresh.Secret) {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrSignerConfig)
	}
	if cfg.Access.TTL <= 0 || cfg.Refresh.TTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", ErrSignerConfig)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Signer{
		ns: [2]namespace{
			KindAccess:  {secret: cfg.Access.Secret, ttl: cfg.Access.TTL, audience: KindAccess.String()},
			KindRefresh: {secret: cfg.Refresh.Secret, ttl: cfg.Refresh.TTL, audience: KindRefresh.String()},
		},
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

func (s *Signer) namespace(kind Kind) (namespace, error) {
	if kind != KindAccess && kind != KindRefresh {
		return namespace{}, fmt.Errorf("%w: unknown token %s", ErrSignerConfig, kind)
	}
	return s.ns[kind], nil
}

// TTL returns the lifetime configured for kind.
func (s *Signer) TTL(kind Kind) time.Duration {
	ns, err := s.namespace(kind)
	if err != nil {
		return 0
	}
	return ns.ttl
}

// Issue mints a token of the given kind for userID/email.
func (s *Signer) Issue(kind Kind, userID int64, email string) (string, error) {
	ns, err := s.namespace(kind)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{ns.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ns.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ns.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return token, nil
}

func (s *Signer) IssueAccessToken(userID int64, email string) (string, error) {
	return s.Issue(KindAccess, userID, email)
}

func (s *Signer) IssueRefreshToken(userID int64, email string) (string, error) {
	return s.Issue(KindRefresh, userID, email)
}

// IssuePair mints an access and a refresh token together.
func (s *Signer) IssuePair(userID int64, email string) (*TokenPair, error) {
	access, err := s.IssueAccessToken(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(userID, email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm, audience and expiry under kind's
// namespace. Every failure wraps common.ErrInvalidToken; expiry additionally
// wraps common.ErrTokenExpired.
func (s *Signer) Verify(tokenString string, kind Kind) (*Claims, error) {
	ns, err := s.namespace(kind)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ns.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return ns.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
