package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Content types written by the index data endpoints
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html"
)

// WriteJSONResponse encodes data before writing anything, so an encoding
// failure still produces a clean 500.
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, map[string]string{"error": message}, statusCode)
}

// WriteHTMLResponse writes body verbatim as text/html
func WriteHTMLResponse(w http.ResponseWriter, body string, statusCode int) {
	w.Header().Set("Content-Type", ContentTypeHTML)
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}
