package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeRateLimited is used when the rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes. The
// API surfaces domain codes verbatim so clients can branch on them.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	// Malformed or invalid input -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	"INVALID_AMOUNT":       http.StatusBadRequest,
	"INVALID_PERIOD":       http.StatusBadRequest,
	"INVALID_POLICY":       http.StatusBadRequest,
	"NEGATIVE_CONSUMPTION": http.StatusBadRequest,

	// Missing resources -> 404 Not Found
	ErrCodeNotFound:  http.StatusNotFound,
	"UNIT_NOT_FOUND": http.StatusNotFound,

	// Conflicting writes and duplicates -> 409 Conflict
	"DUPLICATE_PERIOD":      http.StatusConflict,
	"IMMUTABLE_BILL":        http.StatusConflict,
	"OPTIMISTIC_LOCK_ERROR": http.StatusConflict,
	"CONCURRENCY_CONFLICT":  http.StatusConflict,
	"ALLOCATION_CONFLICT":   http.StatusConflict,

	// Business rule violations -> 422 Unprocessable Entity
	"INVALID_STATE":       http.StatusUnprocessableEntity,
	"INSUFFICIENT_CREDIT": http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not mapped.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
