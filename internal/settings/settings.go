// Package settings persists the per-user exchange rate, Monobank token and
// auto-sync preference through the key/value port.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/smart-finance/internal/currency"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/dvloznov/smart-finance/internal/logger"
)

const (
	// RateKey holds the USD to base currency rate as a decimal string.
	RateKey = "smart_finance_usd_rate"
	// MonobankKey holds the Monobank connection settings.
	MonobankKey = "smart_finance_monobank"
	// AutoSyncUsersKey lists the users that opted into scheduled sync.
	AutoSyncUsersKey = "smart_finance_autosync_users"
)

// Settings is the explicit configuration passed into the pipelines.
type Settings struct {
	USDRate       float64 `json:"usdRate"`
	MonobankToken string  `json:"-"`
	AccountID     string  `json:"accountId,omitempty"`
	AutoSync      bool    `json:"autoSync"`
}

// HasToken reports whether a Monobank token is saved.
func (s Settings) HasToken() bool {
	return s.MonobankToken != ""
}

type monobankRecord struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId,omitempty"`
	AutoSync  bool   `json:"autoSync"`
}

// Service reads and writes settings.
type Service struct {
	kv          kv.Store
	defaultRate float64
}

// NewService creates a settings service. A non-positive defaultRate falls
// back to currency.DefaultUSDRate.
func NewService(store kv.Store, defaultRate float64) *Service {
	if currency.ValidateAmount(defaultRate) != nil {
		defaultRate = currency.DefaultUSDRate
	}
	return &Service{kv: store, defaultRate: defaultRate}
}

// Load returns the settings for user, filling defaults for anything unset.
func (s *Service) Load(ctx context.Context, user string) (Settings, error) {
	rate, err := s.Rate(ctx, user)
	if err != nil {
		return Settings{}, err
	}
	out := Settings{USDRate: rate}

	var mono monobankRecord
	if _, err := kv.GetJSON(ctx, s.kv, kv.UserKey(MonobankKey, user), &mono); err != nil {
		return Settings{}, fmt.Errorf("Load: monobank: %w", err)
	}
	out.MonobankToken = mono.Token
	out.AccountID = mono.AccountID
	out.AutoSync = mono.AutoSync
	return out, nil
}

// Rate returns the stored rate, or the default when none is stored or the
// stored value is unusable.
func (s *Service) Rate(ctx context.Context, user string) (float64, error) {
	data, err := s.kv.Get(ctx, kv.UserKey(RateKey, user))
	if errors.Is(err, kv.ErrNotFound) {
		return s.defaultRate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("Rate: %w", err)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil || currency.ValidateAmount(rate) != nil {
		log := logger.FromContext(ctx)
		log.Warn().Str("value", string(data)).Msg("Ignoring stored exchange rate")
		return s.defaultRate, nil
	}
	return rate, nil
}

// SetRate parses and stores a new rate. An invalid value is rejected with
// domain.ErrInvalidAmount and the previous rate is kept.
func (s *Service) SetRate(ctx context.Context, user, value string) (float64, error) {
	rate, err := currency.ParseAmount(value)
	if err != nil {
		return 0, fmt.Errorf("SetRate: %w", err)
	}
	if err := s.kv.Set(ctx, kv.UserKey(RateKey, user), []byte(strconv.FormatFloat(rate, 'f', -1, 64))); err != nil {
		return 0, fmt.Errorf("SetRate: %w", err)
	}
	return rate, nil
}

// SetMonobank stores the token and auto-sync flag and keeps the auto-sync
// user list in step. An empty token clears the connection.
func (s *Service) SetMonobank(ctx context.Context, user, token, accountID string, autoSync bool) error {
	token = strings.TrimSpace(token)
	if token == "" {
		autoSync = false
	}
	if autoSync && user == "" {
		return fmt.Errorf("SetMonobank: auto sync: %w", domain.ErrIdentityUnresolved)
	}

	key := kv.UserKey(MonobankKey, user)
	if token == "" {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("SetMonobank: %w", err)
		}
	} else {
		rec := monobankRecord{Token: token, AccountID: strings.TrimSpace(accountID), AutoSync: autoSync}
		if err := kv.SetJSON(ctx, s.kv, key, rec); err != nil {
			return fmt.Errorf("SetMonobank: %w", err)
		}
	}

	if user == "" {
		return nil
	}
	users, err := s.AutoSyncUsers(ctx)
	if err != nil {
		return fmt.Errorf("SetMonobank: %w", err)
	}
	set := make(map[string]struct{}, len(users)+1)
	for _, u := range users {
		set[u] = struct{}{}
	}
	if autoSync {
		set[user] = struct{}{}
	} else {
		delete(set, user)
	}
	users = users[:0]
	for u := range set {
		users = append(users, u)
	}
	sort.Strings(users)
	if err := kv.SetJSON(ctx, s.kv, AutoSyncUsersKey, users); err != nil {
		return fmt.Errorf("SetMonobank: users: %w", err)
	}
	return nil
}

// AutoSyncUsers lists users with scheduled sync enabled, sorted.
func (s *Service) AutoSyncUsers(ctx context.Context) ([]string, error) {
	var users []string
	if _, err := kv.GetJSON(ctx, s.kv, AutoSyncUsersKey, &users); err != nil {
		return nil, fmt.Errorf("AutoSyncUsers: %w", err)
	}
	return users, nil
}
