package market

import (
	"errors"
	"fmt"
)

// ErrBackfillExhausted is returned when trade pagination hits its page budget
// before covering the requested window.
var ErrBackfillExhausted = errors.New("backfill exhausted")

// FetchError is a transport or HTTP status failure talking to a source.
type FetchError struct {
	Source string
	Op     string
	Market string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s %s", e.Source, e.Op, e.Market)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedResponseError means the source answered but not in the expected shape.
type MalformedResponseError struct {
	Source string
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: malformed response", e.Source, e.Op)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ConfigurationError flags an unusable configuration value.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
