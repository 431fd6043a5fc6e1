// Package respond writes the JSON bodies shared by handlers and middlewares.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"detail": detail} with the given status.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Detail: detail})
}

// ErrBodyTooLarge is returned by Decode when the body exceeds its limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Decode reads a JSON body of at most maxBytes into dst. Unknown fields
// are accepted.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("malformed json: %w", err)
		}
	}
	return nil
}

// ReadAll reads a raw body of at most maxBytes.
func ReadAll(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	return data, nil
}

// DecodeError writes the response matching an error from Decode or ReadAll.
func DecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	Error(w, http.StatusBadRequest, err.Error())
}
