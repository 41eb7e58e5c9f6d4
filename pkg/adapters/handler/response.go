package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized, domain.KindInvalidToken:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicateEmail, domain.KindDuplicateCode:
		return http.StatusConflict
	case domain.KindStorageUnavailable, domain.KindCodeSpaceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := domain.MessageOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "error", err)
		if kind == domain.KindInternal {
			message = "internal server error"
		}
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Wrap(err, domain.KindValidation, "invalid request body")
	}
	return nil
}
