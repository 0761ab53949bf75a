// Package httpx provides HTTP response utilities shared by all API handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error envelope returned by every API route: a human
// readable message, a machine readable kind, and the raw database detail
// when one exists.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	DB    string `json:"db,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends the error envelope.
func Error(w http.ResponseWriter, status int, kind, message, dbDetail string) {
	JSON(w, status, ErrorBody{Error: message, Kind: kind, DB: dbDetail})
}

// DecodeJSON decodes the JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
