package handler

import (
	"encoding/json"
	"net/http"
	"strings"
)

// errorResponse is the JSON error envelope every API endpoint uses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// unwrapMessage extracts the human-readable tail from a wrapped validation
// error, e.g. "service.PlaceService.Create: validation error: name is
// required" → "name is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const marker = "validation error: "
	if idx := strings.LastIndex(msg, marker); idx >= 0 {
		return msg[idx+len(marker):]
	}
	return msg
}
