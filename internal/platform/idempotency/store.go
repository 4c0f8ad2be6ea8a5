package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL is how long completed records are retained for replay.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch signals that a key was reused with a different request body.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with different request")

// ReservationState describes the outcome of reserving an idempotency key.
type ReservationState int

const (
	// ReservationNew means the key is unused and the caller should process the request.
	ReservationNew ReservationState = iota
	// ReservationReplay means a stored response exists and should be written back.
	ReservationReplay
	// ReservationInFlight means another request holds the key right now.
	ReservationInFlight
)

// Record is the stored response for a completed idempotent request.
type Record struct {
	Key         string
	Fingerprint string
	Status      int
	Header      http.Header
	Body        []byte
	StoredAt    time.Time
	ExpiresAt   time.Time
}

// Reservation is the result of attempting to claim a key.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Store persists idempotency reservations and replayable responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string) (Reservation, error)
	Complete(ctx context.Context, key string, record Record) error
	Release(ctx context.Context, key string) error
}

// Fingerprint derives a stable digest for a request body so key reuse with a
// different payload can be rejected.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
