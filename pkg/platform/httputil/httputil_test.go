package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/sentinel"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "redis write failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "internal errors must not leak their message")
	})

	t.Run("validation includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "national id must be 13 digits"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "national id must be 13 digits", body["error_description"])
	})

	t.Run("closed session reads as not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("session x: %w", sentinel.ErrClosed))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeNotFound:         http.StatusNotFound,
		dErrors.CodeBadRequest:       http.StatusBadRequest,
		dErrors.CodeInvalidState:     http.StatusConflict,
		dErrors.CodeNetwork:          http.StatusBadGateway,
		dErrors.CodeRateLimited:      http.StatusTooManyRequests,
		dErrors.CodeCameraPermission: http.StatusServiceUnavailable,
		dErrors.CodeCameraBusy:       http.StatusServiceUnavailable,
		dErrors.CodeNoMatch:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), string(code))
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Step string `json:"step"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"step":"id-input"}`))
	require.NoError(t, DecodeJSON(r, &body))
	assert.Equal(t, "id-input", body.Step)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stage":"id-input"}`))
	err := DecodeJSON(r, &body)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
