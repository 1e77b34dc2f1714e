package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	pair, err := s.sessions.Register(ctx, in)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeData(ctx, w, http.StatusCreated, pair)
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	pair, err := s.sessions.Login(ctx, in)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if pair == nil {
		s.writeError(ctx, w, common.ErrorUnauthorized)
		return
	}

	s.writeData(ctx, w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, _ := subjectFrom(ctx)

	pair, err := s.sessions.Refresh(ctx, sub.claims.UserID, sub.token)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeData(ctx, w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, _ := subjectFrom(ctx)

	ok, err := s.sessions.Logout(ctx, sub.claims.UserID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeData(ctx, w, http.StatusOK, map[string]bool{"success": ok})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, _ := subjectFrom(ctx)

	p, err := s.profiles.Profile(ctx, sub.claims.UserID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeData(ctx, w, http.StatusOK, p)
}
