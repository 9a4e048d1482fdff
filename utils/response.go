package utils

import (
	"encoding/json"
	"net/http"
)

type M map[string]any

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, ErrorBody{Error: msg})
}

// RespondWithJSON encodes data before writing the header so an encoding
// failure still turns into a 500.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(buf, '\n'))
}
