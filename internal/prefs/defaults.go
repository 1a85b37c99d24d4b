// Package prefs provides typed access to values persisted in a KeyValueStore,
// in the spirit of a user-defaults database: missing or undecodable values read
// back as the type's zero value.
package prefs

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/eliteGoblin/locked/internal/domain"
)

// Defaults wraps a store with typed getters and setters.
type Defaults struct {
	store domain.KeyValueStore
}

// New creates a Defaults view over store.
func New(store domain.KeyValueStore) *Defaults {
	return &Defaults{store: store}
}

// Store returns the underlying store.
func (d *Defaults) Store() domain.KeyValueStore {
	return d.store
}

// Encode stores v as JSON under key.
func (d *Defaults) Encode(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := d.store.Set(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Decode reads key into v. Returns domain.ErrKeyNotFound when absent.
func (d *Defaults) Decode(key string, v any) error {
	data, err := d.store.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Has reports whether key holds a value.
func (d *Defaults) Has(key string) bool {
	_, err := d.store.Get(key)
	return err == nil
}

// Remove deletes key.
func (d *Defaults) Remove(key string) error {
	return d.store.Remove(key)
}

// Bool returns the stored bool, false when absent.
func (d *Defaults) Bool(key string) bool {
	var v bool
	_ = d.Decode(key, &v)
	return v
}

// SetBool stores a bool.
func (d *Defaults) SetBool(key string, v bool) error {
	return d.Encode(key, v)
}

// Int returns the stored int, 0 when absent.
func (d *Defaults) Int(key string) int {
	var v int
	_ = d.Decode(key, &v)
	return v
}

// SetInt stores an int.
func (d *Defaults) SetInt(key string, v int) error {
	return d.Encode(key, v)
}

// String returns the stored string, "" when absent.
func (d *Defaults) String(key string) string {
	var v string
	_ = d.Decode(key, &v)
	return v
}

// SetString stores a string.
func (d *Defaults) SetString(key, v string) error {
	return d.Encode(key, v)
}

// Time returns the stored timestamp. ok is false when absent or undecodable.
func (d *Defaults) Time(key string) (t time.Time, ok bool) {
	if err := d.Decode(key, &t); err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetTime stores a timestamp.
func (d *Defaults) SetTime(key string, t time.Time) error {
	return d.Encode(key, t)
}

// Duration returns the stored duration, 0 when absent.
func (d *Defaults) Duration(key string) time.Duration {
	var v time.Duration
	_ = d.Decode(key, &v)
	return v
}

// SetDuration stores a duration.
func (d *Defaults) SetDuration(key string, v time.Duration) error {
	return d.Encode(key, v)
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrKeyNotFound)
}
