// Package apperr defines the error taxonomy used across the control plane:
// every error surfaced from a repository, service, or adapter should resolve
// to one of these kinds so the API layer can map it to an HTTP status without
// inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP-status mapping and logging severity.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindAuthorization     Kind = "authorization"
	KindForbidden         Kind = "forbidden"
	KindUpstreamTransient Kind = "upstream_transient"
	KindUpstreamOther     Kind = "upstream_other"
	KindInternal          Kind = "internal"
)

// Error is a classified application error. The wrapped cause is preserved for
// logging but never echoed to callers for KindInternal/KindUpstreamOther.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func build(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Configuration wraps a misconfiguration error (missing Settings, bad config file).
func Configuration(msg string, cause error) *Error { return build(KindConfiguration, msg, cause) }

// Validation wraps a caller-input error.
func Validation(msg string) *Error { return build(KindValidation, msg, nil) }

// NotFound wraps an entity-not-found error.
func NotFound(msg string) *Error { return build(KindNotFound, msg, nil) }

// Authorization wraps a missing/expired-credential error (maps to 401).
func Authorization(msg string) *Error { return build(KindAuthorization, msg, nil) }

// Forbidden wraps a wrong-role/permission-denied error (maps to 403).
func Forbidden(msg string) *Error { return build(KindForbidden, msg, nil) }

// UpstreamTransient wraps a retryable upstream failure (429, 5xx, timeout).
func UpstreamTransient(msg string, cause error) *Error {
	return build(KindUpstreamTransient, msg, cause)
}

// UpstreamOther wraps a non-retryable upstream failure (4xx other than 429).
func UpstreamOther(msg string, cause error) *Error { return build(KindUpstreamOther, msg, cause) }

// Internal wraps an unexpected internal error.
func Internal(msg string, cause error) *Error { return build(KindInternal, msg, cause) }

// KindOf extracts the Kind from err, defaulting to KindInternal for
// unclassified errors so nothing falls through to an uncontrolled response.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
