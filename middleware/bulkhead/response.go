package bulkhead

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	headerContentType = "Content-Type"
	headerRetryAfter  = "Retry-After"
	contentTypeJSON   = "application/json"
)

const (
	MessageOverloaded = "Service overloaded"
	MessageTimeout    = "Request timeout waiting for resources"
)

// ErrorBody é o corpo JSON das respostas 503 do bulkhead.
type ErrorBody struct {
	Error      bool   `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeOverloaded(w http.ResponseWriter, retryAfter time.Duration) {
	secs := retryAfterSeconds(retryAfter)
	w.Header().Set(headerRetryAfter, formatInt(secs))
	writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: true, Message: MessageOverloaded, RetryAfter: secs})
}

func writeTimeout(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: true, Message: MessageTimeout})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
