// Package httputil writes JSON responses and maps domain error codes onto
// HTTP status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/sentinel"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with status. Encoding failures after the header is sent
// cannot be reported to the client and are dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes err as an ErrorResponse. Internal errors never expose
// their message.
func WriteError(w http.ResponseWriter, err error) {
	code := codeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor maps a domain code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeNetwork:
		return http.StatusBadGateway
	}
	if dErrors.IsCamera(code) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// codeOf also translates bare sentinels that escaped without a code.
func codeOf(err error) dErrors.Code {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Code
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrClosed):
		return dErrors.CodeNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.CodeInvalidState
	}
	return dErrors.CodeInternal
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
