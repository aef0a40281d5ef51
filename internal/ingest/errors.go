package ingest

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindUpstream      ErrorKind = "upstream"
	KindStorage       ErrorKind = "storage"
	KindGeocoding     ErrorKind = "geocoding"
	KindParse         ErrorKind = "parse"
	KindInternal      ErrorKind = "internal"
)

// RefreshError is the run-level failure returned by the pipeline. Geocoding
// and parse problems are recovered inside a run and only appear in logs.
type RefreshError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int    // upstream HTTP status, when Kind is KindUpstream
	Message    string // upstream response body or a short description
	Err        error
}

func (e *RefreshError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) *RefreshError {
	return &RefreshError{Kind: KindConfiguration, Op: op, Err: err}
}

func upstreamError(op string, status int, message string, err error) *RefreshError {
	return &RefreshError{Kind: KindUpstream, Op: op, StatusCode: status, Message: message, Err: err}
}

func storageError(op string, err error) *RefreshError {
	return &RefreshError{Kind: KindStorage, Op: op, Err: err}
}

// KindOf classifies err. Errors that are not a RefreshError are internal.
func KindOf(err error) ErrorKind {
	var re *RefreshError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
