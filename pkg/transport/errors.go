package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
)

// AsAPIError returns err as an *api.APIError. Errors of any other type
// become a generic server error so internal details never reach callers.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError("internal server error")
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an error response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, err error) {
	apiErr := AsAPIError(err)
	WriteErrorResponse(w, apiErr, apiErr.HTTPStatus())
}

// WriteJSON writes v as a JSON body with status 200.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
