package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/idempotency"
	"github.com/rs/zerolog"
)

const (
	IdempotencyHeader      = "Idempotency-Key"
	maxIdempotencyKeyLen   = 255
	maxIdempotencyBodySize = 1 << 20
)

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to method and path, so the same key sent to two different
// commissions is two different requests. 5xx responses are not stored.
func Idempotency(store idempotency.Store, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				writeMiddlewareError(w, http.StatusBadRequest, "idempotency key too long", "validation_error")
				return
			}
			scoped := r.Method + " " + r.URL.Path + " " + key

			entry, err := store.Get(r.Context(), scoped)
			if err != nil {
				logger.Warn().Err(err).Msg("Idempotency lookup failed, serving request")
			} else if entry != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 500 || rec.truncated {
				return
			}
			now := time.Now()
			err = store.Set(r.Context(), &idempotency.Entry{
				Key:            scoped,
				ResponseBody:   rec.body.String(),
				ResponseStatus: rec.status,
				CreatedAt:      now,
				ExpiresAt:      now.Add(ttl),
			})
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to store idempotent response")
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status    int
	body      *bytes.Buffer
	truncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.truncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.truncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
