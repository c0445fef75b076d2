package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// errorBody is the JSON error envelope returned by every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code. It encodes to
// a buffer first so headers are only sent after successful encoding.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logx.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logx.Debug().Err(err).Msg("Failed to write response body")
	}
}

// writeError writes the error envelope with an explicit status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeErrx maps an error chain onto the wire using the errx status and safe
// message, logging the underlying cause.
func writeErrx(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	ev := logx.Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Error()
	}
	ev.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	writeError(w, status, errx.MessageOf(err))
}

// decodeJSON decodes a request body into dst with a sane size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
