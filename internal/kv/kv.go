// Package kv is the key/value storage port behind the local transaction
// cache and user settings.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store persists opaque values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value at key into v. found is false when the key is
// absent, in which case v is untouched.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GetJSON: %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("GetJSON: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("SetJSON: encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("SetJSON: %s: %w", key, err)
	}
	return nil
}

// UserKey scopes base to a user. An empty user leaves base unchanged.
func UserKey(base, user string) string {
	if user == "" {
		return base
	}
	return base + ":" + user
}
