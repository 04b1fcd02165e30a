// Package response writes the JSON envelopes used by the willingness API.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as a JSON body with the given status code. A nil data
// writes the status only.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	ErrorWithDetails(w, statusCode, code, message, nil, requestID)
}

// ErrorWithDetails writes an error envelope carrying extra details, such as
// per-field validation failures.
func ErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]any, requestID string) {
	JSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}
