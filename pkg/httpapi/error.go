package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInvalidState   = "INVALID_STATE"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
)

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteAPIError writes an error envelope tagged with the request id of r.
func WriteAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var meta map[string]string
	if r != nil {
		if id := composables.UseRequestID(r.Context()); id != "" {
			meta = map[string]string{"request_id": id}
		}
	}
	_ = WriteError(w, status, code, message, meta)
}

// WriteServiceError maps err to a status and code. Unknown errors become 500s.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs serrors.ValidationErrors
	if errors.As(err, &verrs) {
		meta := map[string]string{}
		for field, msg := range verrs {
			meta[field] = msg
		}
		if r != nil {
			if id := composables.UseRequestID(r.Context()); id != "" {
				meta["request_id"] = id
			}
		}
		_ = WriteError(w, http.StatusUnprocessableEntity, serrors.ErrValidation.Code, verrs.Error(), meta)
		return
	}

	var base *serrors.BaseError
	if errors.As(err, &base) {
		WriteAPIError(w, r, base.StatusCode(), base.Code, base.Error())
		return
	}

	if r != nil {
		composables.UseLogger(r.Context()).WithError(err).Error("unhandled service error")
	}
	WriteAPIError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// DecodeJSON reads a bounded JSON body into v and validates it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return serrors.NewError(CodeInvalidRequest, "invalid JSON body", err.Error())
	}
	if verrs := serrors.ValidateStruct(v); verrs != nil {
		return verrs
	}
	return nil
}
