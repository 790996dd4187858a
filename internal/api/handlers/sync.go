package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/jobs"
	"github.com/dvloznov/smart-finance/internal/pipeline"
	"github.com/rs/zerolog"
)

// Syncer imports bank statements.
type Syncer interface {
	Sync(ctx context.Context, user string, req pipeline.SyncRequest) (*pipeline.SyncResult, error)
}

// SyncHandler handles Monobank sync endpoints.
type SyncHandler struct {
	syncer    Syncer
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler. publisher may be nil, which
// disables the asynchronous endpoint.
func NewSyncHandler(syncer Syncer, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		syncer:    syncer,
		publisher: publisher,
		log:       log,
	}
}

type syncRequest struct {
	Token     string `json:"token"`
	Days      int    `json:"days"`
	AccountID string `json:"accountId"`
}

// SyncMonobank handles POST /api/sync-monobank
func (h *SyncHandler) SyncMonobank(w http.ResponseWriter, r *http.Request) {
	req, ok := middleware.DecodeAndValidate[syncRequest](w, r)
	if !ok {
		return
	}

	res, err := h.syncer.Sync(r.Context(), identity.FromContext(r.Context()), pipeline.SyncRequest{
		Token:     req.Token,
		AccountID: req.AccountID,
		Days:      req.Days,
	})
	if err != nil {
		writeDomainError(w, r, h.log, "Monobank sync failed", err)
		return
	}

	added := res.Added
	if added == nil {
		added = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": added,
		"count":        res.Count,
		"relabeled":    res.Relabeled,
		"persistence":  res.Persistence,
	})
}

// EnqueueSync handles POST /api/sync-monobank/jobs
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, domain.UserMessage(domain.ErrUpstreamUnavailable))
		return
	}
	req, ok := middleware.DecodeAndValidate[syncRequest](w, r)
	if !ok {
		return
	}

	user := identity.FromContext(r.Context())
	job := &jobs.SyncJob{
		UserID:    user,
		Token:     req.Token,
		AccountID: req.AccountID,
		Days:      req.Days,
		Trigger:   jobs.TriggerManual,
	}
	if err := h.publisher.PublishSync(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", user).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", user).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}
