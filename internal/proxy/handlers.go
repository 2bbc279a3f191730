package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/florianilch/ledgerly/internal/tokensource"
)

// maxLoginBody bounds the login request body.
const maxLoginBody = 1 << 16

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
}

func (p *Proxy) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeJSONError(ctx, w, "username and password are required", http.StatusBadRequest)
		return
	}

	if err := p.session.Login(ctx, req.Username, req.Password); err != nil {
		if errors.Is(err, tokensource.ErrInvalidGrant) {
			writeJSONError(ctx, w, "invalid username or password", http.StatusUnauthorized)
			return
		}
		slog.ErrorContext(ctx, "login failed", "error", err)
		writeJSONError(ctx, w, "login failed", http.StatusBadGateway)
		return
	}

	slog.InfoContext(ctx, "user logged in", "username", req.Username)
	writeJSON(ctx, w, loginResponse{Username: req.Username}, http.StatusOK)
}

func (p *Proxy) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := p.session.Logout(ctx); err != nil {
		slog.ErrorContext(ctx, "logout failed", "error", err)
		writeJSONError(ctx, w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Proxy) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := p.session.Status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "reading session failed", "error", err)
		writeJSONError(ctx, w, "session unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, st, http.StatusOK)
}
