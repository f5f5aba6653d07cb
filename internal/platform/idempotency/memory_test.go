package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var storeTestNow = time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

func TestMemoryStoreReserveLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key-1", "fp-1", storeTestNow, time.Hour)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %d", first.State)
	}

	again, err := store.Reserve(ctx, "key-1", "fp-1", storeTestNow.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if again.State != ReservationStatePending {
		t.Fatalf("expected pending while first request runs, got %d", again.State)
	}

	resp := Response{
		Status:  http.StatusOK,
		Headers: http.Header{"Content-Type": {"application/json"}, "Content-Length": {"2"}},
		Body:    []byte("{}"),
	}
	if err := store.SaveResponse(ctx, "key-1", "fp-1", resp, storeTestNow.Add(time.Minute), time.Hour); err != nil {
		t.Fatalf("SaveResponse returned error: %v", err)
	}

	replay, err := store.Reserve(ctx, "key-1", "fp-1", storeTestNow.Add(2*time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if replay.State != ReservationStateCompleted {
		t.Fatalf("expected completed record, got %d", replay.State)
	}
	if replay.Record.ResponseStatus != http.StatusOK || string(replay.Record.ResponseBody) != "{}" {
		t.Fatalf("unexpected stored response %+v", replay.Record)
	}
	if _, kept := replay.Record.ResponseHeaders["Content-Length"]; kept {
		t.Fatal("volatile headers must not be stored")
	}
	if _, kept := replay.Record.ResponseHeaders["Content-Type"]; !kept {
		t.Fatal("payload headers must be stored")
	}
}

func TestMemoryStoreFingerprintMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "key-1", "fp-1", storeTestNow, time.Hour); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	_, err := store.Reserve(ctx, "key-1", "fp-2", storeTestNow, time.Hour)
	if !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
}

func TestMemoryStoreExpiredKeyIsTakenOver(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "key-1", "fp-1", storeTestNow, time.Minute); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}

	later := storeTestNow.Add(2 * time.Minute)
	takeover, err := store.Reserve(ctx, "key-1", "fp-2", later, time.Minute)
	if err != nil {
		t.Fatalf("Reserve after expiry returned error: %v", err)
	}
	if takeover.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reusable, got %d", takeover.State)
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"key-1", "key-2", "key-3"} {
		if _, err := store.Reserve(ctx, key, "fp", storeTestNow, time.Minute); err != nil {
			t.Fatalf("Reserve returned error: %v", err)
		}
	}

	removed, err := store.CleanupExpired(ctx, storeTestNow.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("CleanupExpired returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected limit to cap removals at 2, got %d", removed)
	}
	removed, err = store.CleanupExpired(ctx, storeTestNow.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("CleanupExpired returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected remaining record removed, got %d", removed)
	}
}
