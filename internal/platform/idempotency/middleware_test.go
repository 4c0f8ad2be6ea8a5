package idempotency

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"call": %d}`, *calls)
	})
}

func postWithKey(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(defaultHeader, key)
	}
	return req
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(countingHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("key-1", `{"total": 6789.20}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("key-1", `{"total": 6789.20}`))

	if calls != 1 {
		t.Fatalf("expected a single handler invocation, got %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("expected replay marker header")
	}
}

func TestMiddlewareRejectsKeyReuseWithDifferentBody(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(countingHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("key-1", `{"total": 6789.20}`))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("key-1", `{"total": 1.00}`))

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("expected a single handler invocation, got %d", calls)
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(countingHandler(&calls))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postWithKey("", `{}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both requests handled, got %d", calls)
	}
}

func TestMiddlewareDoesNotCacheServerErrors(t *testing.T) {
	calls := 0
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := Middleware(NewMemoryStore())(failing)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postWithKey("key-1", `{}`))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected retries to reach the handler, got %d", calls)
	}
}

func TestMemoryStoreExpiresRecords(t *testing.T) {
	now := fixedClock()
	store := NewMemoryStore(
		WithMemoryTTL(time.Hour),
		WithMemoryClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	if _, err := store.Reserve(ctx, "key-1", "fp"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Complete(ctx, "key-1", Record{Key: "key-1", Fingerprint: "fp", Status: http.StatusCreated}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	reservation, err := store.Reserve(ctx, "key-1", "fp")
	if err != nil {
		t.Fatalf("reserve after complete: %v", err)
	}
	if reservation.State != ReservationReplay {
		t.Fatalf("expected replay state, got %v", reservation.State)
	}

	now = now.Add(2 * time.Hour)
	reservation, err = store.Reserve(ctx, "key-1", "fp")
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if reservation.State != ReservationNew {
		t.Fatalf("expected expired record to be evicted, got state %v", reservation.State)
	}
}
