package domain

import (
	"errors"
	"fmt"
)

// The error taxonomy drives the scheduler's retry decision. Adapters and the
// store only ever classify; the scheduler is the single place that decides
// retry versus permanent failure.

// NetworkError wraps a failed or timed-out transport call. Retryable.
type NetworkError struct {
	Source string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FormatError wraps an unparsable, empty, or structurally unexpected upstream
// payload. Retryable: the upstream may recover by the next cycle.
type FormatError struct {
	Source string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: upstream format error: %v", e.Source, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ConfigError marks an operator-level misconfiguration, e.g. an adapter
// referencing a platform the catalog does not have. Not retryable.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError wraps a failed database connection or commit. Retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports whether err is transient per the taxonomy. Configuration
// errors require operator action and are permanent; everything classified is
// otherwise worth another attempt.
func Retryable(err error) bool {
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return false
	}
	var net *NetworkError
	var format *FormatError
	var storage *StorageError
	return errors.As(err, &net) || errors.As(err, &format) || errors.As(err, &storage)
}
