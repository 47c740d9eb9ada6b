package dto

import "net/http"

// Common error codes returned by the API
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// statusByCode maps error codes to HTTP status codes. Codes raised by the
// billing domain map onto the transition or input they violate.
var statusByCode = map[string]int{
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,
	ErrCodeConflict:   http.StatusConflict,
	ErrCodeInternal:   http.StatusInternalServerError,

	"INVALID_INPUT":              http.StatusBadRequest,
	"INVALID_PERIOD":             http.StatusBadRequest,
	"INVALID_MONTH":              http.StatusBadRequest,
	"INVALID_DISTRIBUTION":       http.StatusBadRequest,
	"INVALID_STATE":              http.StatusConflict,
	"INVOICE_ALREADY_FINALIZED":  http.StatusConflict,
	"CONCURRENT_FINALIZATION":    http.StatusConflict,
	"MISSING_TARIFF":             http.StatusUnprocessableEntity,
	"MISSING_READING":            http.StatusUnprocessableEntity,
	"NEGATIVE_CONSUMPTION":       http.StatusUnprocessableEntity,
	"EMPTY_BUILDING":             http.StatusUnprocessableEntity,
	"PROPERTY_NOT_IN_BUILDING":   http.StatusUnprocessableEntity,
	"UNSUPPORTED_PRICING_MODEL":  http.StatusUnprocessableEntity,
	"UNSUPPORTED_SERVICE_CONFIG": http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to 500
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
