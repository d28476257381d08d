// Package enginerr defines the engine's error taxonomy (spec §7) as
// sentinel wrapped types so callers branch with errors.As instead of
// string matching.
package enginerr

import "fmt"

// ExchangeTransientError wraps a network/5xx failure that exhausted its
// retries inside the ExchangeClient.
type ExchangeTransientError struct{ Err error }

func (e *ExchangeTransientError) Error() string { return fmt.Sprintf("exchange transient: %v", e.Err) }
func (e *ExchangeTransientError) Unwrap() error { return e.Err }

// ExchangeAuthError wraps a signature/credential rejection. Never retried.
type ExchangeAuthError struct{ Err error }

func (e *ExchangeAuthError) Error() string { return fmt.Sprintf("exchange auth: %v", e.Err) }
func (e *ExchangeAuthError) Unwrap() error  { return e.Err }

// ExchangeRejectedError wraps a business rejection: insufficient balance,
// min notional, precision. Carries the exchange's message; no retry.
type ExchangeRejectedError struct{ Err error }

func (e *ExchangeRejectedError) Error() string { return fmt.Sprintf("exchange rejected: %v", e.Err) }
func (e *ExchangeRejectedError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure. The scheduler logs it and skips
// the bot for the current tick.
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return fmt.Sprintf("store: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ConfigError wraps a configuration problem: missing credentials, an
// unknown condition field. Logged once per tick; the bot is skipped.
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

func Store(err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Err: err}
}

func Config(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Err: err}
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &ExchangeTransientError{Err: err}
}

func Auth(err error) error {
	if err == nil {
		return nil
	}
	return &ExchangeAuthError{Err: err}
}

func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return &ExchangeRejectedError{Err: err}
}
