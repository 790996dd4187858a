// Package handlers implements the HTTP endpoints of the Mini App backend.
package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/store"
	"github.com/rs/zerolog"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInputMissing),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrNoResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamAuth),
		errors.Is(err, domain.ErrIdentityUnresolved):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoAccounts):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError logs err and answers with the user facing message of its
// kind.
func writeDomainError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, msg string, err error) {
	status := statusFor(err)
	log = log.With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("user_id", identity.FromContext(r.Context())).
		Logger()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg(msg)
	} else {
		log.Warn().Err(err).Int("status", status).Msg(msg)
	}
	middleware.WriteError(w, status, domain.UserMessage(err))
}

// collection is the response body of every endpoint returning the stored
// transactions.
type collection struct {
	Transactions []domain.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	Persistence  store.Persistence    `json:"persistence"`
}

func newCollection(res *store.Result) collection {
	txs := res.Transactions
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return collection{Transactions: txs, Count: len(txs), Persistence: res.Persistence}
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
