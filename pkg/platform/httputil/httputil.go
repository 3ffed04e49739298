// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes and the error contract stays in one place.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "podbroker/pkg/domain-errors"
)

// errorResponse is the wire shape for failures. ErrorDescription is omitted
// for internal errors so infrastructure details never leak to callers.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its fixed HTTP status and the
// machine-readable error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
