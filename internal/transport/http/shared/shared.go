// Package shared centralizes the JSON response envelope and domain error
// translation so every handler answers the same shape:
// {"success": bool, "message": string, "data": object}.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "campusid/pkg/domain-errors"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Message: message, Data: data})
}

// WriteError translates a domain error into the envelope with the mapped
// HTTP status. Unknown errors collapse to a generic 500 so internals never
// leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Message: message})
}
