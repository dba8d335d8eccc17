package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fallbackErrorResponse is pre-marshaled so encoding failures can still
// produce a valid JSON body.
var fallbackErrorResponse = []byte(`{"status":"error","message":"internal server error"}`)

// writeJSONResponse writes v as a JSON response with the given status code.
// If encoding fails, a pre-marshaled error body is written instead.
func writeJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("writeJSONResponse: failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write(fallbackErrorResponse); werr != nil {
			slog.Error("writeJSONResponse: failed to write fallback response", "error", werr)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("writeJSONResponse: failed to write response", "error", err)
	}
}
