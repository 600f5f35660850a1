package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks a transient per-item failure; the item is dropped and the batch continues.
	ErrFetch = errors.New("fetch failed")
	// ErrNotFound marks an item the source reports as missing.
	ErrNotFound = errors.New("not found")
	// ErrExhausted signals normal termination of a paged or scrolled source.
	ErrExhausted = errors.New("source exhausted")
	// ErrConfiguration marks fatal configuration problems that abort the run.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrSessionExpired is returned by sources when the session must be refreshed.
	ErrSessionExpired = errors.New("session expired")
)

// FetchError records which stage and key a fetch failure belongs to.
type FetchError struct {
	Stage string
	Key   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

// Unwrap exposes the cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Is reports FetchError as ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ConfigError describes a rejected configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports ConfigError as ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
