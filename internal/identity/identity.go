// Package identity resolves the Telegram user behind a Mini App request
// from its signed initData.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// DefaultMaxAge bounds how old auth_date may be.
const DefaultMaxAge = 24 * time.Hour

// UserPrefix is prepended to the Telegram user id to form the store identity.
const UserPrefix = "tg_"

var (
	ErrMissingHash = errors.New("initData has no hash")
	ErrBadHash     = errors.New("initData hash mismatch")
	ErrExpired     = errors.New("initData expired")
	ErrNoUser      = errors.New("initData has no user")
)

// User is the Telegram user carried in initData.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// StoreID is the identity used to scope stored data.
func (u User) StoreID() string {
	return UserPrefix + strconv.FormatInt(u.ID, 10)
}

// Validator checks initData signatures for one bot.
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator derives the signing key from botToken. An empty token yields
// a validator that trusts the unsigned user field.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	v := &Validator{maxAge: maxAge, now: time.Now}
	if botToken != "" {
		mac := hmac.New(sha256.New, []byte("WebAppData"))
		mac.Write([]byte(botToken))
		v.secret = mac.Sum(nil)
	}
	return v
}

// Verifying reports whether signatures are checked.
func (v *Validator) Verifying() bool {
	return len(v.secret) > 0
}

// Validate parses initData and returns its user.
func (v *Validator) Validate(initData string) (User, error) {
	if strings.TrimSpace(initData) == "" {
		return User{}, fmt.Errorf("Validate: %w", domain.ErrIdentityUnresolved)
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return User{}, fmt.Errorf("Validate: parse: %v: %w", err, domain.ErrIdentityUnresolved)
	}

	if v.Verifying() {
		if err := v.verify(values); err != nil {
			return User{}, fmt.Errorf("Validate: %w: %w", err, domain.ErrIdentityUnresolved)
		}
	}

	raw := values.Get("user")
	if raw == "" {
		return User{}, fmt.Errorf("Validate: %w: %w", ErrNoUser, domain.ErrIdentityUnresolved)
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == 0 {
		return User{}, fmt.Errorf("Validate: %w: %w", ErrNoUser, domain.ErrIdentityUnresolved)
	}
	return u, nil
}

func (v *Validator) verify(values url.Values) error {
	hash := values.Get("hash")
	if hash == "" {
		return ErrMissingHash
	}
	got, err := hex.DecodeString(hash)
	if err != nil {
		return ErrBadHash
	}
	if !hmac.Equal(got, v.sign(DataCheckString(values))) {
		return ErrBadHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return ErrExpired
	}
	if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return ErrExpired
	}
	return nil
}

func (v *Validator) sign(data string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// Sign returns the hash for values as Telegram would compute it. Used to
// build initData for local tools and tests.
func (v *Validator) Sign(values url.Values) string {
	return hex.EncodeToString(v.sign(DataCheckString(values)))
}

// DataCheckString joins every field except hash as sorted key=value lines.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

type ctxKey struct{}

// WithUser stores the resolved user id on ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// FromContext returns the resolved user id, or "" when the request is
// anonymous.
func FromContext(ctx context.Context) string {
	if user, ok := ctx.Value(ctxKey{}).(string); ok {
		return user
	}
	return ""
}
