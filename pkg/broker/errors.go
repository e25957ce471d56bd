package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
)

// maxErrorMessage bounds broker error messages passed to callers.
const maxErrorMessage = 256

// MapHTTPError converts a non-2xx broker response into an APIError.
// 404 becomes not_found, other 4xx keep their status as upstream_error, and
// everything else is an upstream_error reported as 500.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "no matching tenant or credential"
		}
		return api.NewNotFoundError(message)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if message == "" {
			message = fmt.Sprintf("broker rejected the request (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(resp.StatusCode, message)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("broker server error (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(resp.StatusCode, message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected broker response (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(0, message)
	}
}

// MapNetworkError converts a transport failure (connection refused, DNS,
// timeout, cancellation) into an upstream error.
func MapNetworkError(err error) *api.APIError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewUpstreamError(0, "broker request timed out")
	case errors.Is(err, context.Canceled):
		return api.NewUpstreamError(0, "broker request cancelled")
	}
	return api.NewUpstreamError(0, fmt.Sprintf("broker connection error: %s", err.Error()))
}

// ExtractErrorMessage reads an error message from a broker response body.
// It understands the gateway's own error envelope and falls back to the raw
// text, truncated.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		return debug.Truncate(errResp.Error.Message, maxErrorMessage)
	}
	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && flat.Message != "" {
		return debug.Truncate(flat.Message, maxErrorMessage)
	}

	return debug.Truncate(string(bytes.TrimSpace(data)), maxErrorMessage)
}
