package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// maxBodyBytes caps request bodies at 10MB. Large sync payloads fit with
// room to spare; anything bigger is a client bug.
const maxBodyBytes = 10 << 20

// ErrRequestTooLarge marks a body that blew past the size cap, so callers
// can answer 413 instead of treating it as malformed JSON.
var ErrRequestTooLarge = errors.New("request body too large")

// ParseJSON decodes JSON from the request body into the given destination.
// Oversized bodies return an error wrapping ErrRequestTooLarge; respond with
// RespondParseError to map it to the right status.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	// Unknown fields are tolerated: older clients send extra bookkeeping
	// fields the server no longer reads. Validation happens downstream in
	// the services.
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: limit is %d bytes", ErrRequestTooLarge, maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// RespondParseError writes the problem response for a ParseJSON failure:
// 413 for an oversized body, 400 for anything else.
func RespondParseError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRequestTooLarge) {
		RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	RespondError(w, http.StatusBadRequest, err.Error())
}
