package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"agromart/apperr"
)

const maxJSONBody = 1 << 20

// RespondWithJSON sends a JSON response.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithError maps err onto its HTTP status and writes {error, message}.
func RespondWithError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	RespondWithJSON(w, apperr.HTTPStatus(kind), map[string]string{
		"error":   string(kind),
		"message": apperr.Message(err),
	})
}

// DecodeJSON reads a bounded JSON body into dst and rejects unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid JSON payload: %v", err)
	}
	return nil
}

type M map[string]any
