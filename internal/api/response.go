package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arealhq/arealbot/internal/log"
)

// writeJSON writes a JSON response. Buffer-first so headers go out only
// after successful encoding.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug("failed to write response body", "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a structured error response. Internal detail never
// reaches the client; the message is what a user may see.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}}, logger)
}
