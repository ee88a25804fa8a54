package json

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 1 << 20 // 1 MB

type envelope struct {
	Error string `json:"error"`
}

// Read decodes the request body into dst, rejecting unknown fields and
// oversized payloads.
func Read(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(dst)
}

func Write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, status int, err error, message string) {
	if message == "" && err != nil {
		message = err.Error()
	}
	Write(w, status, envelope{Error: message})
}

func WriteValidationError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err, "")
}

func WriteBadRequestError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, nil, message)
}

func WriteInternalError(w http.ResponseWriter, err error) {
	// Never leak internals to the client
	WriteError(w, http.StatusInternalServerError, nil, "internal server error")
}
