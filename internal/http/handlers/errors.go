// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// This file centralizes symbolic error code constants that are mapped to
// HTTP responses (via the `fail()` helper in this package). These codes give
// clients a stable, machine-readable error taxonomy alongside the human
// readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (bad_request, not_found, conflict, ...) mirror common
//     HTTP status semantics.
//   - Domain-specific codes are reserved for business errors that a status
//     alone cannot convey — protected_record in particular marks attempts to
//     delete eternal memorial records.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeProtectedRecord  = "protected_record"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeQueryFailed      = "query_failed"
	ErrCodeFanoutFailed     = "fanout_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
