package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func newTestSigner(t *testing.T, now func() time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(Config{
		Access:  KeyConfig{Secret: []byte("access-secret"), TTL: 15 * time.Minute},
		Refresh: KeyConfig{Secret: []byte("refresh-secret"), TTL: 7 * 24 * time.Hour},
		Now:     now,
	})
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}
	return s
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, nil)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		tok, err := s.Issue(kind, 42, "a@x.io")
		if err != nil {
			t.Fatalf("Issue(%s) error: %v", kind, err)
		}

		claims, err := s.Verify(tok, kind)
		if err != nil {
			t.Fatalf("Verify(%s) error: %v", kind, err)
		}
		if claims.UserID != 42 || claims.Email != "a@x.io" {
			t.Fatalf("claims mismatch: got id=%d email=%q", claims.UserID, claims.Email)
		}
		if claims.Subject != "42" {
			t.Fatalf("subject mismatch: got %q", claims.Subject)
		}
		if claims.ID == "" {
			t.Fatalf("expected jti to be set")
		}
	}
}

func TestIssue_Lifetimes(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, func() time.Time { return now })

	access, err := s.IssueAccessToken(1, "a@x.io")
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	refresh, err := s.IssueRefreshToken(1, "a@x.io")
	if err != nil {
		t.Fatalf("IssueRefreshToken error: %v", err)
	}

	ac, err := s.Verify(access, KindAccess)
	if err != nil {
		t.Fatalf("Verify access error: %v", err)
	}
	rc, err := s.Verify(refresh, KindRefresh)
	if err != nil {
		t.Fatalf("Verify refresh error: %v", err)
	}

	if got := ac.ExpiresAt.Sub(ac.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("access lifetime: got %v", got)
	}
	if got := rc.ExpiresAt.Sub(rc.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("refresh lifetime: got %v", got)
	}
	if s.TTL(KindRefresh) != 7*24*time.Hour {
		t.Fatalf("TTL(refresh) mismatch")
	}
}

func TestIssuePair_TokensDiffer(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := newTestSigner(t, func() time.Time { return now })

	p1, err := s.IssuePair(7, "b@x.io")
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	p2, err := s.IssuePair(7, "b@x.io")
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if p1.AccessToken == p1.RefreshToken {
		t.Fatalf("access and refresh tokens must differ")
	}
	// Same second, same subject: jti keeps them distinct.
	if p1.RefreshToken == p2.RefreshToken {
		t.Fatalf("refresh tokens minted in the same second must differ")
	}
}

func TestVerify_CrossKindRejected(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, nil)

	pair, err := s.IssuePair(3, "c@x.io")
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := s.Verify(pair.AccessToken, KindRefresh); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("access token verified as refresh: %v", err)
	}
	if _, err := s.Verify(pair.RefreshToken, KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("refresh token verified as access: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Now().Add(-time.Hour)
	clock := issued
	s := newTestSigner(t, func() time.Time { return clock })

	tok, err := s.IssueAccessToken(5, "d@x.io")
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	clock = issued.Add(16 * time.Minute)
	_, err = s.Verify(tok, KindAccess)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, nil)
	other, err := NewSigner(Config{
		Access:  KeyConfig{Secret: []byte("other-access"), TTL: time.Minute},
		Refresh: KeyConfig{Secret: []byte("other-refresh"), TTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	tok, err := other.IssueRefreshToken(1, "e@x.io")
	if err != nil {
		t.Fatalf("IssueRefreshToken error: %v", err)
	}

	if _, err := s.Verify(tok, KindRefresh); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MalformedAndTampered(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, nil)

	if _, err := s.Verify("not.a.jwt", KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
	if _, err := s.Verify("", KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}

	tok, err := s.IssueAccessToken(1, "f@x.io")
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	parts := strings.Split(tok, ".")
	parts[1] = parts[1] + "x"
	if _, err := s.Verify(strings.Join(parts, "."), KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, nil)
	now := time.Now()
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Audience:  jwt.ClaimStrings{"access"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := s.Verify(tok, KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none error: %v", err)
	}
	if _, err := s.Verify(none, KindAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected unsigned token to be rejected, got %v", err)
	}
}

func TestNewSigner_InvalidConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"missing access":  {Refresh: KeyConfig{Secret: []byte("r"), TTL: time.Hour}, Access: KeyConfig{TTL: time.Hour}},
		"missing refresh": {Access: KeyConfig{Secret: []byte("a"), TTL: time.Hour}, Refresh: KeyConfig{TTL: time.Hour}},
		"same secret":     {Access: KeyConfig{Secret: []byte("k"), TTL: time.Hour}, Refresh: KeyConfig{Secret: []byte("k"), TTL: time.Hour}},
		"zero ttl":        {Access: KeyConfig{Secret: []byte("a")}, Refresh: KeyConfig{Secret: []byte("r"), TTL: time.Hour}},
	}
	for name, cfg := range cases {
		if _, err := NewSigner(cfg); !errors.Is(err, ErrSignerConfig) {
			t.Fatalf("%s: expected ErrSignerConfig, got %v", name, err)
		}
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	if KindAccess.String() != "access" || KindRefresh.String() != "refresh" {
		t.Fatalf("unexpected kind names")
	}
	if Kind(9).String() != "kind(9)" {
		t.Fatalf("unexpected unknown kind name: %q", Kind(9).String())
	}
}
