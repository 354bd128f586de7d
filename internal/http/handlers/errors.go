// Package handlers defines the error codes of the admin API.
//
// Every error response carries an HTTP status plus one of these stable,
// snake_case codes, so scripts driving the fleet can branch on them:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "credential already exists"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeFleetClosed = "fleet_closed"
	ErrCodeUpstream    = "upstream_failed"
)
