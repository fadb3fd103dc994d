package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/infra/logging"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func respondFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// statusFor maps domain errors onto transport status codes. The bool is false
// for errors whose message must not reach the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, true
	case errors.Is(err, domain.ErrGatewayTimeout):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, domain.ErrGateway), errors.Is(err, domain.ErrGatewayNotConfigured):
		return http.StatusBadGateway, true
	}
	return http.StatusInternalServerError, false
}

// respondError writes err as a failure envelope. Unexpected errors are logged
// and replaced with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, public := statusFor(err)
	if !public {
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondFail(w, status, "internal server error")
		return
	}
	respondFail(w, status, err.Error())
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidArgument)
	}
	return nil
}
