// Package httpapi exposes the session operations over HTTP/JSON.
//
//	POST /auth/signup   {username,email,password}     -> 201 token pair
//	POST /auth/signin   {email,password}              -> 200 token pair | 401
//	POST /auth/refresh  Authorization: Bearer refresh -> 200 token pair | 403
//	POST /auth/logout   Authorization: Bearer access  -> 200 {success:true}
//	GET  /auth/me       Authorization: Bearer access  -> 200 profile
//
// Successful responses are wrapped as {"data": ...}; failures as {"error": "..."}.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type SessionService interface {
	Register(ctx context.Context, in services.RegisterInput) (*auth.TokenPair, error)
	Login(ctx context.Context, in services.LoginInput) (*auth.TokenPair, error)
	Refresh(ctx context.Context, userID int64, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID int64) (bool, error)
}

type ProfileService interface {
	Profile(ctx context.Context, userID int64) (*models.Profile, error)
}

type TokenVerifier interface {
	Verify(token string, kind auth.Kind) (*auth.Claims, error)
}

type Deps struct {
	Sessions SessionService
	Profiles ProfileService
	Tokens   TokenVerifier
	Metrics  *metrics.Metrics
}

type Server struct {
	address         string
	logger          logging.Logger
	sessions        SessionService
	profiles        ProfileService
	tokens          TokenVerifier
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
}

func NewServer(a string, l logging.Logger, d Deps, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		address:         a,
		logger:          l.With("module", "http_server"),
		sessions:        d.Sessions,
		profiles:        d.Profiles,
		tokens:          d.Tokens,
		metrics:         d.Metrics,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, path string, h http.Handler) {
		mux.Handle(pattern, s.metrics.Middleware(path, otelhttp.WithRouteTag(path, h)))
	}

	route("POST /auth/signup", "/auth/signup", http.HandlerFunc(s.handleSignup))
	route("POST /auth/signin", "/auth/signin", http.HandlerFunc(s.handleSignin))
	route("POST /auth/refresh", "/auth/refresh", s.requireToken(auth.KindRefresh, http.HandlerFunc(s.handleRefresh)))
	route("POST /auth/logout", "/auth/logout", s.requireToken(auth.KindAccess, http.HandlerFunc(s.handleLogout)))
	route("GET /auth/me", "/auth/me", s.requireToken(auth.KindAccess, http.HandlerFunc(s.handleMe)))

	return otelhttp.NewHandler(s.logRequests(s.recoverPanics(mux)), "tokenkeeper.http")
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
