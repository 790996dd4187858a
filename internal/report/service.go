package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/notify"
	"github.com/dvloznov/smart-finance/internal/store"
)

// Lister reads a user's stored transactions.
type Lister interface {
	List(ctx context.Context, user string) (*store.Result, error)
}

// Service builds monthly reports and delivers them.
type Service struct {
	lister   Lister
	notifier notify.Notifier
	archiver *Archiver
}

// NewService creates a report service. archiver may be nil when no bucket
// is configured.
func NewService(lister Lister, notifier notify.Notifier, archiver *Archiver) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{lister: lister, notifier: notifier, archiver: archiver}
}

// Monthly returns the report of user for month.
func (s *Service) Monthly(ctx context.Context, user, month string) (*Monthly, error) {
	res, err := s.lister.List(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("Monthly: %w", err)
	}
	return BuildMonthly(res.Transactions, month)
}

// SendMonthly messages the summary and CSV of month to the user's chat and
// archives the CSV when an archiver is set. Months without transactions are
// skipped.
func (s *Service) SendMonthly(ctx context.Context, user, month string) error {
	log := logger.FromContext(ctx).With().Str("user_id", user).Str("month", month).Logger()

	m, err := s.Monthly(ctx, user, month)
	if err != nil {
		return err
	}
	if m.Count == 0 {
		log.Debug().Msg("No transactions, report skipped")
		return nil
	}

	chatID, err := notify.ChatID(user)
	if err != nil {
		return fmt.Errorf("SendMonthly: %w", err)
	}
	if err := s.notifier.SendText(ctx, chatID, Summary(m)); err != nil {
		return fmt.Errorf("SendMonthly: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, m.Transactions); err != nil {
		return fmt.Errorf("SendMonthly: %w", err)
	}
	if err := s.notifier.SendDocument(ctx, chatID, m.Month+".csv", buf.Bytes()); err != nil {
		return fmt.Errorf("SendMonthly: %w", err)
	}

	if s.archiver != nil {
		uri, err := s.archiver.Archive(ctx, user, m)
		if err != nil {
			// The user already has the report; a failed archive is not fatal.
			log.Warn().Err(err).Msg("Report archive failed")
			return nil
		}
		log.Info().Str("uri", uri).Msg("Report archived")
	}
	return nil
}

// Archived returns the stored CSV export of user for month.
func (s *Service) Archived(ctx context.Context, user, month string) ([]byte, error) {
	if s.archiver == nil {
		return nil, fmt.Errorf("Archived: no report bucket configured: %w", domain.ErrUpstreamUnavailable)
	}
	return s.archiver.Fetch(ctx, user, month)
}
