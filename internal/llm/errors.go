//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package llm

import "errors"

// Error classification codes shared by all providers. Callers branch on the
// code rather than on provider-specific status lines.
const (
	// ErrCodeProviderUnavailable marks network failures and upstream 5xx
	// responses. Eligible for a bounded retry.
	ErrCodeProviderUnavailable = "provider_unavailable"

	// ErrCodeRateLimited marks upstream 429 responses. Surfaced immediately,
	// never retried silently.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInvalidModel marks requests naming a model the provider does not
	// know. Fatal to the calling node.
	ErrCodeInvalidModel = "invalid_model"

	// ErrCodeContentFiltered marks generations refused by the provider's
	// safety layer. Non-retryable and user visible.
	ErrCodeContentFiltered = "content_filtered"

	// ErrCodeInvalidKey marks authentication failures (401/403).
	ErrCodeInvalidKey = "invalid_api_key"

	// ErrCodeTimeout marks calls that exceeded their deadline.
	ErrCodeTimeout = "timeout"
)

// Error is the typed error returned by providers and the gateway.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	return e.Message
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf returns the classification code of err, or empty string if err is
// not a provider error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ClassifyStatus builds a provider error from an HTTP status code and message
// using the shared taxonomy.
func ClassifyStatus(status int, message string) *Error {
	e := &Error{
		Message:    message,
		StatusCode: status,
	}

	switch {
	case status == 429:
		e.Code = ErrCodeRateLimited
	case status == 401 || status == 403:
		e.Code = ErrCodeInvalidKey
	case status == 404:
		e.Code = ErrCodeInvalidModel
	case status >= 500:
		e.Code = ErrCodeProviderUnavailable
		e.Retryable = true
	default:
		e.Code = ErrCodeProviderUnavailable
	}

	return e
}

// Unavailable builds a retryable provider_unavailable error for transport
// level failures that never produced an HTTP response.
func Unavailable(message string) *Error {
	return &Error{
		Code:      ErrCodeProviderUnavailable,
		Message:   message,
		Retryable: true,
	}
}
