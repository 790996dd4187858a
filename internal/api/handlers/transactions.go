package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/pipeline"
	"github.com/dvloznov/smart-finance/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransactionStore is the store surface the handlers use.
type TransactionStore interface {
	List(ctx context.Context, user string) (*store.Result, error)
	Create(ctx context.Context, user string, tx domain.Transaction) (*store.Result, error)
	Update(ctx context.Context, user string, tx domain.Transaction) (*store.Result, error)
	Delete(ctx context.Context, user, id string) (*store.Result, error)
}

// ChatPipeline extracts transactions from free text.
type ChatPipeline interface {
	Parse(ctx context.Context, text string, existing []domain.Transaction) (*domain.ParsedTransaction, error)
	AddFromText(ctx context.Context, user, text string) (*pipeline.ChatResult, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store    TransactionStore
	pipeline ChatPipeline
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st TransactionStore, p ChatPipeline, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:    st,
		pipeline: p,
		log:      log,
	}
}

type parseRequest struct {
	Text                 string               `json:"text" validate:"required"`
	ExistingTransactions []domain.Transaction `json:"existingTransactions"`
}

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

// ParseTransaction handles POST /api/parse-transaction
func (h *TransactionsHandler) ParseTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := middleware.DecodeAndValidate[parseRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, domain.UserMessage(domain.ErrInputMissing))
		return
	}

	parsed, err := h.pipeline.Parse(r.Context(), req.Text, req.ExistingTransactions)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to parse transaction", err)
		return
	}

	// null tells the client to ask the user to rephrase
	middleware.WriteJSON(w, http.StatusOK, parsed)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.List(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to list transactions", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newCollection(res))
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := middleware.DecodeAndValidate[domain.Transaction](w, r)
	if !ok {
		return
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	res, err := h.store.Create(r.Context(), identity.FromContext(r.Context()), *tx)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to create transaction", err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction":  domain.Normalize(*tx),
		"transactions": newCollection(res).Transactions,
		"count":        len(res.Transactions),
		"persistence":  res.Persistence,
	})
}

// CreateFromText handles POST /api/transactions/text
func (h *TransactionsHandler) CreateFromText(w http.ResponseWriter, r *http.Request) {
	req, ok := middleware.DecodeAndValidate[textRequest](w, r)
	if !ok {
		return
	}

	res, err := h.pipeline.AddFromText(r.Context(), identity.FromContext(r.Context()), req.Text)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to add transaction from text", err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction":  res.Transaction,
		"rule":         res.Rule,
		"transactions": newCollection(res.Result).Transactions,
		"count":        len(res.Transactions),
		"persistence":  res.Persistence,
	})
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	tx, ok := middleware.DecodeAndValidate[domain.Transaction](w, r)
	if !ok {
		return
	}
	tx.ID = id

	res, err := h.store.Update(r.Context(), identity.FromContext(r.Context()), *tx)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to update transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newCollection(res))
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.store.Delete(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to delete transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newCollection(res))
}
