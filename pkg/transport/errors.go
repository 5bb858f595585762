package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/mcpgate/pkg/api"
)

var errorStatus = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:  http.StatusBadRequest,
	api.ErrorTypeUnauthorized:    http.StatusUnauthorized,
	api.ErrorTypeNotFound:        http.StatusNotFound,
	api.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
}

// HTTPStatusFromError maps an APIError type to its HTTP status. Unknown
// types are 500. Errors without a type of their own (413, 415, 501) are
// written with WriteErrorResponse and an explicit status.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := errorStatus[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body failed", "error", err)
	}
}

// WriteErrorResponse writes {"error": apiErr} with status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, status int) {
	WriteJSON(w, status, api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes apiErr with the status derived from its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
