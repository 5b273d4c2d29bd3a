// Package rerrors carries the coordinator's error taxonomy as wrapped
// sentinel kinds, with Is/As-compatible constructors and a recursive field
// collector used for `Details`.
package rerrors

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stdlib passthroughs, kept so all packages import rerrors rather than
// reaching for the stdlib errors package directly.

func Is(err error, target error) bool { return errors.Is(err, target) }
func As(err error, target any) bool   { return errors.As(err, target) }
func New(message string) error        { return errors.New(message) }

// Error taxonomy . Each is a sentinel that wraps the offending
// name via fmt.Errorf("%w: ...") so errors.Is still matches the base kind.
var (
	ErrNotStarted      = errors.New("request handler not started")
	ErrUnknownClient   = errors.New("unknown client")
	ErrDuplicateClient = errors.New("duplicate client")
	ErrStaleInstance   = errors.New("stale instance registration")
	ErrStaleRequest    = errors.New("stale request heartbeat")
	ErrAuthRefresh     = errors.New("oauth2 token refresh failed")
)

func UnknownClient(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownClient, name)
}

func DuplicateClient(name string) error {
	return fmt.Errorf("%w: %q", ErrDuplicateClient, name)
}

func StaleInstance(id string) error {
	return fmt.Errorf("%w: %q", ErrStaleInstance, id)
}

func StaleRequest(requestID string) error {
	return fmt.Errorf("%w: %q", ErrStaleRequest, requestID)
}

func AuthRefresh(clientName string, cause error) error {
	return fmt.Errorf("%w for client %q: %w", ErrAuthRefresh, clientName, cause)
}

// Details returns the `"error_details":{...}` log field of an error, if
// present. Safe to use with any error, including nil.
func Details(err error) zap.Field {
	var logfields *logerr
	if errors.As(err, &logfields) {
		return logfields.Field()
	}
	return zap.Skip()
}

// WithDetails attaches structured log fields to an error, retrievable later
// via Details(err). If err is nil, nil is returned.
func WithDetails(err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	return &logerr{cause: err, fields: fields}
}

type logerr struct {
	cause  error
	fields []zap.Field
}

var _ error = &logerr{}

func (l *logerr) Error() string { return l.cause.Error() }
func (l *logerr) Unwrap() error { return l.cause }

func (l *logerr) Field() zap.Field {
	return zap.Object("error_details", &zapobj{l.recursiveFields()})
}

func (l *logerr) recursiveFields() []zap.Field {
	var child *logerr
	if errors.As(l.cause, &child) {
		return append(l.fields, child.recursiveFields()...)
	}
	return l.fields
}

type zapobj struct {
	fields []zap.Field
}

var _ zapcore.ObjectMarshaler = &zapobj{}

func (z *zapobj) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	for _, f := range z.fields {
		f.AddTo(encoder)
	}
	return nil
}
