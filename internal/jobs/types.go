package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSyncMonobank represents a bank statement import for one user.
	JobTypeSyncMonobank JobType = "sync_monobank"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Trigger says who started a job.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// DefaultMaxRetries applies when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// SyncJob imports recent Monobank statement lines for a user.
type SyncJob struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`

	// Token is the Monobank personal token. It is never serialized; when
	// empty the handler falls back to the token saved in settings.
	Token string `json:"-"`

	AccountID string  `json:"account_id,omitempty"`
	Days      int     `json:"days"`
	Trigger   Trigger `json:"trigger"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Added is the number of new transactions stored by the last run.
	Added int `json:"added"`
	// LocalOnly is set when the last run could not reach the remote store.
	LocalOnly bool `json:"local_only,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SyncJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SyncJob) GetType() JobType {
	return JobTypeSyncMonobank
}

// GetStatus implements the Job interface.
func (j *SyncJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishSync publishes a bank sync job.
	PublishSync(ctx context.Context, job *SyncJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SyncJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// IsRetryable reports whether running the job again could succeed.
// Rejected credentials and missing input will fail the same way every time.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrUpstreamAuth),
		errors.Is(err, domain.ErrInputMissing),
		errors.Is(err, domain.ErrNoAccounts),
		errors.Is(err, domain.ErrIdentityUnresolved),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
