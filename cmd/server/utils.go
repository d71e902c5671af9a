package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

// APIError is the body of every error response.
type APIError struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIError{Error: message})
}

// statusFor maps catalogue error types to HTTP status codes.
func statusFor(err error) int {
	var ce *catalogue.CatalogueError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Type {
	case catalogue.ErrorTypeValidation:
		return http.StatusBadRequest
	case catalogue.ErrorTypeNotFound:
		return http.StatusNotFound
	case catalogue.ErrorTypeConstraint:
		return http.StatusConflict
	case catalogue.ErrorTypeStorage:
		if ce.Code == catalogue.ErrCodeCircuitOpen {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeCatalogueError writes err with the status of its catalogue type.
// Errors outside the catalogue taxonomy are logged and hidden.
func writeCatalogueError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var ce *catalogue.CatalogueError
	if !errors.As(err, &ce) || status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if ce == nil {
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, status, APIError{Error: ce.Message, Code: ce.Code, Field: ce.Field, Details: ce.Details})
}

// idParam parses a positive int64 chi URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// readJSONBody decodes the request body into v and runs struct validation.
func readJSONBody(r *http.Request, validate *validator.Validate, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if validate == nil {
		return nil
	}
	if err := validate.Struct(v); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}
