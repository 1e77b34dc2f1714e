package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn(ctx, "write response failed", "error", err)
	}
}

func (s *Server) writeData(ctx context.Context, w http.ResponseWriter, code int, data any) {
	s.writeJSON(ctx, w, code, envelope{Data: data})
}

// writeError maps err onto a status code. Internal failures are logged and
// reported generically.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, msg := http.StatusInternalServerError, common.ErrorInternal.Error()

	switch {
	case errors.Is(err, common.ErrValidation):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrAlreadyExists):
		code, msg = http.StatusConflict, common.ErrAlreadyExists.Error()
	case errors.Is(err, common.ErrTokenExpired):
		code, msg = http.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrInvalidToken):
		code, msg = http.StatusUnauthorized, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		code, msg = http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrAccessDenied):
		code, msg = http.StatusForbidden, common.ErrAccessDenied.Error()
	case errors.Is(err, common.ErrorNotFound):
		code, msg = http.StatusNotFound, common.ErrorNotFound.Error()
	default:
		s.logger.Error(ctx, "request failed", "error", err)
	}

	s.writeJSON(ctx, w, code, envelope{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}
