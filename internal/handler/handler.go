package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/coupon"
	"storefront/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// decode reads a JSON body into dst and runs struct validation on it.
// It writes a 400 response and returns false when either step fails.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}, logger zerolog.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, validationMessage(err), logger)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// writeServiceError maps a service error to its HTTP response:
// rejections are 422 with the reason code, a lost usage race is 409,
// domain errors use their code and anything else is a generic 500.
func writeServiceError(w http.ResponseWriter, err error, fallback string, logger zerolog.Logger) {
	if rej, ok := coupon.AsRejection(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:   string(rej.Reason),
			Message: rej.Error(),
		})
		return
	}
	if errors.Is(err, coupon.ErrRaceLost) {
		writeError(w, http.StatusConflict, model.ErrCodeCouponRaceLost, "coupon was used up while the order was placed", logger)
		return
	}

	var de *model.DomainError
	if errors.As(err, &de) {
		writeError(w, domainStatus(de), de.Code, de.Message, logger)
		return
	}

	logger.Error().Err(err).Msg(fallback)
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   model.ErrCodeInternalError,
		Message: fallback,
	})
}

func domainStatus(de *model.DomainError) int {
	switch de.Code {
	case model.ErrCodeProductNotFound, model.ErrCodeOrderNotFound, model.ErrCodeCouponNotFound:
		return http.StatusNotFound
	case model.ErrCodeMissingIdentity:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
