package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
)

type generateVouchersRequest struct {
	PackageID string `json:"package_id"`
	Quantity  *int   `json:"quantity"`
}

type voucherCodeRequest struct {
	Code       string  `json:"voucher_code"`
	MACAddress *string `json:"mac_address"`
}

type revokeVoucherRequest struct {
	VoucherID string `json:"voucher_id"`
}

type activationResponse struct {
	Code      string              `json:"voucher_code"`
	Status    model.VoucherStatus `json:"status"`
	ExpiresAt *time.Time          `json:"expires_at"`
	Username  *string             `json:"username"`
}

// POST /api/vouchers/generate
func (s *Server) handleGenerateVouchers(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var req generateVouchersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	vs, err := s.vouchers.Generate(r.Context(), req.PackageID, qty, actor)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondCreated(w, vs)
}

// GET /api/vouchers/list?status=&package_id=&search=&limit=
func (s *Server) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		status    string
		packageID string
		search    string
		limit     int
	)
	params := []struct {
		name string
		dst  any
	}{
		{"status", &status},
		{"package_id", &packageID},
		{"search", &search},
		{"limit", &limit},
	}
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dst); err != nil {
			respondError(w, r, s.log, fmt.Errorf("%w: invalid query parameter %s", domain.ErrInvalidArgument, p.name))
			return
		}
	}

	f := model.VoucherFilter{
		Status:    model.VoucherStatus(strings.ToLower(strings.TrimSpace(status))),
		PackageID: strings.TrimSpace(packageID),
		Search:    strings.TrimSpace(search),
		Limit:     limit,
	}
	if f.Status != "" && f.Status != "all" && !f.Status.Valid() {
		respondError(w, r, s.log, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, status))
		return
	}
	if f.Status == "all" {
		f.Status = ""
	}

	vs, err := s.vouchers.List(r.Context(), f)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, vs)
}

// GET /api/vouchers/stats
func (s *Server) handleVoucherStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.vouchers.Stats(r.Context())
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, st)
}

// POST /api/vouchers/check
func (s *Server) handleCheckVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, r, s.log, fmt.Errorf("%w: voucher code is required", domain.ErrInvalidArgument))
		return
	}
	chk, err := s.vouchers.CheckByCode(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, chk)
}

// POST /api/vouchers/activate
func (s *Server) handleActivateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, r, s.log, fmt.Errorf("%w: voucher code is required", domain.ErrInvalidArgument))
		return
	}
	v, err := s.vouchers.Activate(r.Context(), req.Code, req.MACAddress)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, activationResponse{
		Code:      v.Code,
		Status:    v.Status,
		ExpiresAt: v.ExpiresAt,
		Username:  v.GatewayUsername,
	})
}

// POST /api/vouchers/revoke
func (s *Server) handleRevokeVoucher(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var req revokeVoucherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	if strings.TrimSpace(req.VoucherID) == "" {
		respondError(w, r, s.log, fmt.Errorf("%w: voucher_id is required", domain.ErrInvalidArgument))
		return
	}
	v, err := s.vouchers.Revoke(r.Context(), req.VoucherID, actor)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, v)
}

// GET /api/vouchers/active
func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.vouchers.ActiveSessions(r.Context())
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, sessions)
}
