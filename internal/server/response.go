package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/bryan-buckman/todod/internal/errs"
	"github.com/rs/zerolog/hlog"
)

var (
	todoNotFound = errs.NewNotFoundError("todo not found")
	notReady     = errs.NewServiceUnavailableError("storage not ready")
)

// toHTTPError is the single translation from the error taxonomy to HTTP.
// Only KindNotFound is visible to clients; every other kind is a 500.
func toHTTPError(err error) *errs.HTTPError {
	if errs.Is(err, errs.KindNotFound) {
		return todoNotFound
	}
	return errs.NewInternalServerError()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	he := toHTTPError(err)
	if he.Status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().
			Err(err).
			Stringer("kind", errs.KindOf(err)).
			Msg("request failed")
	}
	writeHTTPError(w, he)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	hlog.FromRequest(r).Debug().Str("reason", msg).Msg("rejecting malformed body")
	writeHTTPError(w, errs.NewBadRequestError(msg))
}

func writeHTTPError(w http.ResponseWriter, he *errs.HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.Status)
	json.NewEncoder(w).Encode(he)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

// decodeJSON only checks shape: fields present must have the declared type.
// Unknown fields are ignored. The body must hold exactly one JSON value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("invalid request body: empty")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: trailing data after JSON value")
	}
	return nil
}

// requireJSON rejects request bodies not declared as application/json.
// Bodiless requests pass through, as with chi's AllowContentType.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeBadRequest(w, r, "expected Content-Type: application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
