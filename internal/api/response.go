// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/validation"
)

// maxBodyBytes caps request bodies. Solution submissions carry the full
// move list and are the largest payloads.
const maxBodyBytes = 4 << 20

// Error codes not produced by domain kinds.
const (
	codeValidation = "VALIDATION_ERROR"
	codeInternal   = "INTERNAL_ERROR"
	codeRateLimit  = "RATE_LIMITED"
)

// sanitizeLogValue removes control characters to prevent log injection.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData sends a success envelope. count is set for list payloads.
func respondData(w http.ResponseWriter, status int, data interface{}, count int, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Count:       count,
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// statusForKind maps a domain error kind to its HTTP status and code.
func statusForKind(kind models.ErrorKind) (int, string) {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case models.KindInvalidState:
		return http.StatusConflict, "INVALID_STATE"
	case models.KindValidationFailure:
		return http.StatusUnprocessableEntity, codeValidation
	case models.KindEligibilityDenied:
		return http.StatusForbidden, "ELIGIBILITY_DENIED"
	case models.KindCapacityExceeded:
		return http.StatusTooManyRequests, "CAPACITY_EXCEEDED"
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respondDomainError translates a manager error into the envelope. Errors
// that are not *models.Error are logged and reported as INTERNAL_ERROR
// without their message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *models.Error
	if !errors.As(err, &derr) {
		logging.Ctx(r.Context()).Error().
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("Request failed")
		respondError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
		return
	}

	status, code := statusForKind(derr.Kind)
	var details map[string]interface{}
	if derr.Reason != "" {
		details = map[string]interface{}{"reason": derr.Reason}
	}
	logging.Ctx(r.Context()).Debug().
		Str("kind", string(derr.Kind)).
		Str("reason", derr.Reason).
		Int("status", status).
		Msg("Request rejected")
	respondError(w, status, code, derr.Error(), details)
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large", nil)
			return false
		}
		respondError(w, http.StatusBadRequest, codeValidation, msg, nil)
		return false
	}
	return true
}

// validateRequest validates a handler-level request struct.
func validateRequest(w http.ResponseWriter, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	respondError(w, http.StatusUnprocessableEntity, apiErr.Code, apiErr.Message, apiErr.Details)
	return false
}
