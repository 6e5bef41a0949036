package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/roach88/dbgateway/internal/apperr"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// errorBody is the error envelope.
type errorBody struct {
	Error   apperr.Code    `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the error envelope. Internal causes are logged,
// never sent.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ae := apperr.As(err)
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("request failed",
			"request_id", RequestID(r.Context()),
			"code", ae.Code,
			"error", err)
	}
	writeJSON(w, status, errorBody{Error: ae.Code, Message: ae.Message, Details: ae.Details})
}

// readJSON decodes exactly one JSON object into dst. Numbers inside
// untyped values stay json.Number so integers keep their precision.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return apperr.Shape(apperr.CodeInvalidJSON, "request body must be a single JSON object")
	}
	return nil
}

// decodeError maps encoding/json failures to shape errors.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return apperr.Shape(apperr.CodeInvalidJSON, "request body must be a JSON object")
		}
		return apperr.InvalidField(field, describeKind(typeErr.Type.Kind()))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Shape(apperr.CodeInvalidJSON, "request body is not valid JSON")
	case errors.Is(err, io.EOF):
		return apperr.Shape(apperr.CodeInvalidJSON, "request body is empty")
	case errors.As(err, &maxErr):
		return apperr.Shape(apperr.CodeInvalidJSON, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		field = strings.Trim(field, `"`)
		return apperr.Shape(apperr.CodeInvalidField, fmt.Sprintf("field %q is not recognized", field)).
			WithDetail("field", field)
	}
	return apperr.Shape(apperr.CodeInvalidJSON, "request body could not be decoded")
}

func describeKind(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "a boolean"
	case reflect.Map, reflect.Struct:
		return "an object"
	default:
		return "a " + k.String()
	}
}
