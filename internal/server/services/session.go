// Package services contains server-side business logic. This file implements
// SessionService, which registers users, logs them in and rotates the single
// refresh token each account may hold.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/cache"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/hasher"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TokenIssuer mints the access/refresh pair for a user.
type TokenIssuer interface {
	IssuePair(userID int64, email string) (*auth.TokenPair, error)
}

// Deps are the collaborators shared by the services in this package.
// Cache, Metrics and Logger are optional.
type Deps struct {
	Repos   repomanager.RepositoryManager
	Hasher  hasher.Hasher
	Tokens  TokenIssuer
	Cache   *cache.Aside
	Metrics *metrics.Metrics
	Logger  logging.Logger
	Policy  PasswordPolicy
}

// SessionService moves a user between Anonymous (no stored refresh digest)
// and Active (one stored digest). Login and refresh rotate the digest;
// logout clears it.
type SessionService struct {
	repos   repomanager.RepositoryManager
	hasher  hasher.Hasher
	tokens  TokenIssuer
	cache   *cache.Aside
	metrics *metrics.Metrics
	logger  logging.Logger
	tracer  trace.Tracer
	policy  PasswordPolicy

	// dummyDigest is verified against when the email is unknown so that
	// both login failures cost one hash verification.
	dummyDigest string
}

func NewSessionService(d Deps) *SessionService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "session")

	aside := d.Cache
	if aside == nil {
		aside = cache.NewAside(nil, logger, d.Metrics)
	}

	policy := d.Policy
	if policy == (PasswordPolicy{}) {
		policy = DefaultPasswordPolicy()
	}

	s := &SessionService{
		repos:   d.Repos,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		cache:   aside,
		metrics: d.Metrics,
		logger:  logger,
		tracer:  otel.Tracer("tokenkeeper/services"),
		policy:  policy,
	}

	if digest, err := d.Hasher.Hash("tokenkeeper-login-timing-only"); err == nil {
		s.dummyDigest = digest
	} else {
		logger.Warn(context.Background(), "dummy digest unavailable", "error", err)
	}

	return s
}

const (
	opRegister = "register"
	opLogin    = "login"
	opRefresh  = "refresh"
	opLogout   = "logout"
)

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}

func (s *SessionService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.metrics.AuthOutcome(op, metrics.OutcomeError)
	s.logger.Error(ctx, "auth operation failed", "op", op, "error", err)
	return err
}

// Register creates the account and its first session atomically. The insert,
// the mint and the digest write share one transaction, so a failure leaves
// neither a row nor returned tokens.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*auth.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Register")
	defer span.End()

	if err := in.validate(s.policy); err != nil {
		s.metrics.AuthOutcome(opRegister, metrics.OutcomeInvalid)
		return nil, err
	}

	passwordDigest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.fail(ctx, span, opRegister, internalError("hash password", err))
	}

	var pair *auth.TokenPair
	err = s.repos.InTx(ctx, func(ctx context.Context, tx repomanager.Repositories) error {
		user, err := tx.Users().Create(ctx, &models.User{
			Username: in.Username,
			Email:    in.Email,
			Password: passwordDigest,
		})
		if err != nil {
			return err
		}

		pair, err = s.rotate(ctx, tx.Users(), user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			s.metrics.AuthOutcome(opRegister, metrics.OutcomeDuplicate)
			return nil, common.ErrAlreadyExists
		}
		if !errors.Is(err, common.ErrorInternal) {
			err = internalError("create user", err)
		}
		return nil, s.fail(ctx, span, opRegister, err)
	}

	s.metrics.AuthOutcome(opRegister, metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user registered")
	return pair, nil
}

// Login returns (nil, nil) when the email is unknown or the password does not
// match. The two cases are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*auth.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Login")
	defer span.End()

	if err := in.validate(); err != nil {
		s.metrics.AuthOutcome(opLogin, metrics.OutcomeInvalid)
		return nil, err
	}

	repo := s.repos.Users()
	user, err := repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(in.Password)
			s.metrics.AuthOutcome(opLogin, metrics.OutcomeRejected)
			return nil, nil
		}
		return nil, s.fail(ctx, span, opLogin, internalError("load user", err))
	}

	ok, err := s.hasher.Verify(in.Password, user.Password)
	if err != nil {
		return nil, s.fail(ctx, span, opLogin, internalError("verify password", err))
	}
	if !ok {
		s.metrics.AuthOutcome(opLogin, metrics.OutcomeRejected)
		return nil, nil
	}

	pair, err := s.rotate(ctx, repo, user)
	if err != nil {
		return nil, s.fail(ctx, span, opLogin, err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	s.invalidateProfile(ctx, user.ID)
	s.metrics.AuthOutcome(opLogin, metrics.OutcomeSuccess)
	return pair, nil
}

// Refresh exchanges the presented refresh token for a new pair and rotates the
// stored digest. Any mismatch, including a token that was already rotated
// away, yields common.ErrAccessDenied.
func (s *SessionService) Refresh(ctx context.Context, userID int64, refreshToken string) (*auth.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Refresh",
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	deny := func(reason string) (*auth.TokenPair, error) {
		s.metrics.AuthOutcome(opRefresh, metrics.OutcomeRejected)
		s.logger.Debug(ctx, "refresh denied", "user_id", userID, "reason", reason)
		return nil, common.ErrAccessDenied
	}

	if userID <= 0 || refreshToken == "" {
		return deny("missing subject or token")
	}

	repo := s.repos.Users()
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return deny("unknown user")
		}
		return nil, s.fail(ctx, span, opRefresh, internalError("load user", err))
	}
	if !user.HasSession() {
		return deny("no active session")
	}

	ok, err := s.hasher.Verify(refreshToken, user.RefreshTokenHash)
	if err != nil {
		// A stored digest we cannot parse cannot match anything.
		s.logger.Warn(ctx, "stored refresh digest unreadable", "user_id", userID, "error", err)
		return deny("unreadable digest")
	}
	if !ok {
		return deny("digest mismatch")
	}

	pair, err := s.rotate(ctx, repo, user)
	if err != nil {
		return nil, s.fail(ctx, span, opRefresh, err)
	}

	s.invalidateProfile(ctx, user.ID)
	s.metrics.AuthOutcome(opRefresh, metrics.OutcomeSuccess)
	return pair, nil
}

// Logout clears the stored digest if one exists. It reports true whether or
// not a session was active; only a store failure is an error.
func (s *SessionService) Logout(ctx context.Context, userID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Logout",
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if err := s.repos.Users().ClearRefreshTokenHash(ctx, userID); err != nil {
		return false, s.fail(ctx, span, opLogout, internalError("clear refresh digest", err))
	}

	s.invalidateProfile(ctx, userID)
	s.metrics.AuthOutcome(opLogout, metrics.OutcomeSuccess)
	return true, nil
}

// rotate mints a pair for user and stores the refresh digest. The pair is
// returned only after the write succeeds; on failure the previous digest is
// left as it was.
func (s *SessionService) rotate(ctx context.Context, repo users.Repository, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, internalError("issue tokens", err)
	}

	digest, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, internalError("hash refresh token", err)
	}

	if err := repo.UpdateRefreshTokenHash(ctx, user.ID, digest); err != nil {
		return nil, internalError("store refresh digest", err)
	}

	return pair, nil
}

func (s *SessionService) burnVerify(password string) {
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
	}
}

func (s *SessionService) invalidateProfile(ctx context.Context, userID int64) {
	s.cache.Invalidate(ctx, ProfileCacheKey(userID))
}

// ProfileCacheKey is the cache key of a user's profile.
func ProfileCacheKey(userID int64) string {
	return "profile:" + strconv.FormatInt(userID, 10)
}
