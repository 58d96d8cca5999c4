package api

import (
	"encoding/json"
	"net/http"

	"comparador/pkg/logger"
)

const internalServerError = "Internal server error"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Error().Err(err).Msg("Error encoding response")
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, &ErrorResponse{Success: false, Error: message})
}

// WriteInternalServerError logs err and replies with an opaque 500.
func WriteInternalServerError(w http.ResponseWriter, err error) {
	logger.Log.Error().Err(err).Msg("request failed")
	WriteError(w, http.StatusInternalServerError, internalServerError)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}
