package respond

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as an application/json response with the given code.
func JSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// Error writes {"error": message}. The frontend's transition client extracts
// this field from 4xx bodies, so the key must stay stable.
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, map[string]string{"error": message})
}
