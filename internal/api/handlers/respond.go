package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error's ErrorType to an HTTP status. Internal
// details are not exposed to the client.
func respondWithAppError(w http.ResponseWriter, err error, fallback string) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, fallback)
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, "concurrent update, please retry")
	case apperrors.ErrorTypeExternal:
		respondWithError(w, http.StatusBadGateway, fallback)
	default:
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}
