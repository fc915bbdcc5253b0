package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/serrors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteAPIError_IncludesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(composables.WithRequestID(r.Context(), "req-42"))
	rec := httptest.NewRecorder()

	WriteAPIError(rec, r, http.StatusNotFound, CodeNotFound, "execution not found")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, CodeNotFound, env.Code)
	assert.Equal(t, "req-42", env.Meta["request_id"])
}

func TestWriteServiceError(t *testing.T) {
	notFound := serrors.NewHTTPError(http.StatusNotFound, "TEST_CASE_NOT_FOUND", "test case not found")
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "http error", err: fmt.Errorf("wrapped: %w", notFound), status: http.StatusNotFound, code: "TEST_CASE_NOT_FOUND"},
		{name: "plain base error", err: serrors.NewError("BAD", "bad", ""), status: http.StatusBadRequest, code: "BAD"},
		{name: "validation", err: serrors.ValidationErrors{"Name": "Name is a required field"}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "unknown", err: fmt.Errorf("db down"), status: http.StatusInternalServerError, code: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeEnvelope(t, rec).Code)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}

	t.Run("valid", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, 1024, &b))
		assert.Equal(t, "x", b.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
		err := DecodeJSON(httptest.NewRecorder(), r, 1024, &b)
		require.ErrorIs(t, err, serrors.NewError(CodeInvalidRequest, "", ""))
	})

	t.Run("missing required", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		err := DecodeJSON(httptest.NewRecorder(), r, 1024, &b)
		var verrs serrors.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "Name")
	})
}
