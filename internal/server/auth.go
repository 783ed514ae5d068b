package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fenggwsx/roomchat/internal/auth"
)

const operatorSubject = "operator"

type subjectKey struct{}

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

var errNoOperator = errors.New("operator login disabled")

// handleToken exchanges the operator password for a bearer token.
func (a *App) handleToken(w http.ResponseWriter, r *http.Request) {
	if a.cfg.OperatorPasswordHash == "" {
		writeError(w, http.StatusNotFound, errNoOperator.Error())
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid token payload")
		return
	}
	if err := auth.ComparePassword(a.cfg.OperatorPasswordHash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			a.log.Error().Err(err).Msg("operator password hash unusable")
			writeError(w, http.StatusInternalServerError, "operator login misconfigured")
			return
		}
		a.log.Warn().Str("remote", clientAddr(r)).Msg("operator login failed")
		writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
		return
	}

	token, expiresAt, err := auth.NewToken(a.cfg.JWT, operatorSubject)
	if err != nil {
		a.log.Error().Err(err).Msg("token issue")
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.log.Info().Str("remote", clientAddr(r)).Time("expires_at", expiresAt).Msg("operator token issued")
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// requireBearer rejects requests without a valid Authorization header.
func (a *App) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := a.verifier.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer rejected")
			writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey{}, subject)
		next(w, r.WithContext(ctx))
	}
}

func subjectFrom(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}
