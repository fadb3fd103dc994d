package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/usecase"
)

// providerCallback is the provider webhook body. The raw body is stored as
// the callback payload.
type providerCallback struct {
	Reference             string  `json:"transaction_reference"`
	Status                string  `json:"status"`
	ProviderTransactionID *string `json:"provider_transaction_id"`
}

type reverseTransactionRequest struct {
	Reference string  `json:"transaction_reference"`
	Reason    *string `json:"reason"`
}

// POST /api/transactions/initiate
func (s *Server) handleInitiateTransaction(w http.ResponseWriter, r *http.Request) {
	var req usecase.InitiateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	pay, err := s.transactions.Initiate(r.Context(), req, publicActor(r))
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondCreated(w, pay)
}

// POST /api/transactions/callback
func (s *Server) handleTransactionCallback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, s.log, fmt.Errorf("%w: unreadable body", domain.ErrInvalidArgument))
		return
	}
	var cb providerCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		respondError(w, r, s.log, fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidArgument))
		return
	}

	res, err := s.transactions.ReconcileCallback(r.Context(), usecase.CallbackRequest{
		Reference:             strings.TrimSpace(cb.Reference),
		Status:                cb.Status,
		ProviderTransactionID: cb.ProviderTransactionID,
		Payload:               json.RawMessage(raw),
	})
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, res)
}

// GET /api/transactions/list?limit=
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		respondError(w, r, s.log, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidArgument))
		return
	}
	txs, err := s.transactions.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, txs)
}

// POST /api/transactions/reverse
func (s *Server) handleReverseTransaction(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var req reverseTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	t, err := s.transactions.Reverse(r.Context(), strings.TrimSpace(req.Reference), req.Reason, actor)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, t)
}
