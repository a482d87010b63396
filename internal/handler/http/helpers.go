package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
)

const maxBodyBytes = 1 << 20

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends {"error": message}.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrEmptyCart),
		errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the error text for validation-class errors and the
// fallback for everything else, so internal details never reach the caller.
func clientMessage(err error, fallback string) string {
	if apperr.IsClientError(err) {
		return err.Error()
	}
	if errors.Is(err, apperr.ErrProvider) {
		return "Payment provider unavailable"
	}
	return fallback
}

// respondWithServiceError logs err and writes the mapped status and message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := mapErrorToStatusCode(err)
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).Str("path", r.URL.Path).Int("status", status).Msg(fallback)

	respondWithError(w, status, clientMessage(err, fallback))
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email address"
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "gt":
			details[field] = fmt.Sprintf("must be greater than %s", fe.Param())
		case "gte":
			details[field] = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		case "eqfield":
			details[field] = fmt.Sprintf("must match %s", strings.ToLower(fe.Param()))
		default:
			details[field] = fmt.Sprintf("failed on '%s' validation", fe.Tag())
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the handler may
// continue. An empty body decodes as an empty object when allowEmpty is set.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any, allowEmpty bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}

	return true
}

// idParam parses a positive integer URL parameter, writing a 400 when it is not one.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Warn().Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return 0, false
	}
	return id, true
}

// optionalBool parses "true"/"false" query values; anything else means unset.
func optionalBool(raw string) *bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
