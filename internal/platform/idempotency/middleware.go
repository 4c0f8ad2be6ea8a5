package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	defaultHeader    = "Idempotency-Key"
	defaultBodyLimit = int64(1 << 20)
	maxKeyLength     = 128
)

type middlewareConfig struct {
	header    string
	bodyLimit int64
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// MiddlewareOption customises Middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header carrying the idempotency key.
func WithHeader(header string) MiddlewareOption {
	return func(c *middlewareConfig) {
		header = strings.TrimSpace(header)
		if header != "" {
			c.header = header
		}
	}
}

// WithLogger sets the structured event logger.
func WithLogger(logger func(ctx context.Context, event string, fields map[string]any)) MiddlewareOption {
	return func(c *middlewareConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Middleware replays stored responses for repeated POST requests carrying the
// same idempotency key. Requests without the header pass through untouched.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		header:    defaultHeader,
		bodyLimit: defaultBodyLimit,
		logger:    func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(cfg.header))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				writeError(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, cfg.bodyLimit))
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "could not read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := Fingerprint(r.Method, r.URL.Path, body)
			reservation, err := store.Reserve(r.Context(), key, fingerprint)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					writeError(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request")
					return
				}
				cfg.logger(r.Context(), "idempotency.reserve_failed", map[string]any{"error": err.Error()})
				next.ServeHTTP(w, r)
				return
			}

			switch reservation.State {
			case ReservationReplay:
				cfg.logger(r.Context(), "idempotency.replayed", map[string]any{"key": key})
				replay(w, reservation.Record)
				return
			case ReservationInFlight:
				writeError(w, http.StatusConflict, "idempotency_in_flight", "a request with this key is still processing")
				return
			}

			recorder := &responseBuffer{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// Server failures are not cached so the client can retry.
			if recorder.status >= http.StatusInternalServerError {
				_ = store.Release(r.Context(), key)
				return
			}
			record := Record{
				Key:         key,
				Fingerprint: fingerprint,
				Status:      recorder.status,
				Header:      recorder.Header().Clone(),
				Body:        recorder.body.Bytes(),
			}
			if err := store.Complete(r.Context(), key, record); err != nil {
				cfg.logger(r.Context(), "idempotency.store_failed", map[string]any{"key": key, "error": err.Error()})
			}
		})
	}
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range record.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set("Idempotency-Replayed", "true")
	status := record.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.Body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

type responseBuffer struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseBuffer) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseBuffer) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
