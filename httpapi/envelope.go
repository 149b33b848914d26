package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/schoollib/loanengine/loans"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the uniform response shape of every endpoint.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	StatusCode int    `json:"statusCode"`
}

// PaginatedData wraps a list payload with its pagination block.
type PaginatedData struct {
	Data       any              `json:"data"`
	Pagination loans.Pagination `json:"pagination"`
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeEnvelope(w, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		StatusCode: statusCode,
	})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, Envelope{
		Success:    false,
		Message:    message,
		StatusCode: statusCode,
	})
}

func writeEnvelope(w http.ResponseWriter, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(envelope.StatusCode)

	_ = json.NewEncoder(w).Encode(envelope)
}
