package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Admin *model.AdminUser `json:"user"`
	Token string           `json:"token"`
}

// GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.GetAll(r.Context())
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, all)
}

// PUT /api/settings
//
// The body is a flat object. Scalar values are stored in their textual form.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	entries := make(map[string]string, len(body))
	for k, v := range body {
		str, ok := settingValue(v)
		if !ok {
			respondError(w, r, s.log, fmt.Errorf("%w: setting %q must be a string, number or boolean", domain.ErrInvalidArgument, k))
			return
		}
		entries[k] = str
	}
	if err := s.settings.SetMany(r.Context(), entries, actor); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondMessage(w, "settings updated")
}

func settingValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case nil:
		return "", true
	}
	return "", false
}

// GET /api/gateway/test-connection
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	st, err := s.portal.TestConnection(r.Context())
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, st)
}

// GET /api/audit-logs?limit=
func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		respondError(w, r, s.log, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidArgument))
		return
	}
	logs, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, logs)
}

// POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	admin, err := s.auth.Login(r.Context(), req.Username, req.Password, publicActor(r))
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	token, err := s.sessions.Mint(w, admin)
	if err != nil {
		respondError(w, r, s.log, fmt.Errorf("mint session: %w", err))
		return
	}
	respondOK(w, loginResponse{Admin: admin, Token: token})
}

// POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	respondMessage(w, "logged out")
}

// GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFrom(r.Context())
	if !ok {
		respondError(w, r, s.log, domain.ErrUnauthorized)
		return
	}
	admin, err := s.auth.Me(r.Context(), c.Subject)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, admin)
}
