// Package httputil centralizes JSON response writing and request decoding.
//
// Every error leaving the service passes through WriteError, which translates
// classified errors, raw sentinels and unclassified failures into the fixed
// API taxonomy. Handlers never write error bodies by hand.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"quoin/pkg/apierrors"
	"quoin/pkg/platform/sentinel"
	"quoin/pkg/requestcontext"
)

// validate is shared; validator instances cache struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the wire shape written for every failed request.
type ErrorResponse struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	StatusCode    int            `json:"status_code"`
	CorrelationID string         `json:"correlation_id"`
	Details       map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		// Encoding failures past the header write can only be dropped.
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates err into the API taxonomy and writes the error
// envelope. The correlation ID comes from the request context so clients
// can quote it when reporting failures.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	classified := Classify(err)
	status := classified.Code.HTTPStatus()

	message := classified.Message
	if classified.Code == apierrors.CodeInternal {
		// Internal detail never reaches clients; it lives in logs only.
		message = "an unexpected error occurred"
	}

	WriteJSON(w, status, ErrorResponse{
		Code:          string(classified.Code),
		Message:       message,
		StatusCode:    status,
		CorrelationID: requestcontext.CorrelationID(r.Context()),
		Details:       classified.Details,
	})
}

// Classify normalizes any error into a taxonomy error. Classified errors
// pass through; raw sentinels that escaped service translation map to
// their canonical codes; everything else is an internal error.
func Classify(err error) *apierrors.Error {
	var classified *apierrors.Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return apierrors.Wrap(err, apierrors.CodeNotFound, "resource not found")
	case errors.Is(err, sentinel.ErrConflict):
		return apierrors.Wrap(err, apierrors.CodeConflict, "resource conflict")
	case errors.Is(err, sentinel.ErrExpired):
		return apierrors.Wrap(err, apierrors.CodeAuthTokenExpired, "token expired")
	case errors.Is(err, sentinel.ErrInvalidState):
		return apierrors.Wrap(err, apierrors.CodeConflict, "resource in invalid state")
	case errors.Is(err, sentinel.ErrUnavailable):
		return apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	default:
		return apierrors.Wrap(err, apierrors.CodeInternal, "internal error")
	}
}

// Decode unmarshals the JSON request body into T and runs struct-tag
// validation. On failure it writes a VALIDATION_ERROR response and returns
// ok=false; the handler should simply return.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "request decode failed",
				"correlation_id", requestcontext.CorrelationID(r.Context()),
				"error", err,
			)
		}
		WriteError(w, r, apierrors.Wrap(err, apierrors.CodeValidation, "request body is not valid JSON"))
		return req, false
	}

	if err := ValidateStruct(req); err != nil {
		WriteError(w, r, err)
		return req, false
	}
	return req, true
}

// ValidateStruct runs validator tags over v and translates failures into a
// VALIDATION_ERROR carrying per-field details.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.Wrap(err, apierrors.CodeValidation, "request validation failed")
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return apierrors.Wrap(err, apierrors.CodeValidation, "request validation failed").
		WithDetails(details)
}
