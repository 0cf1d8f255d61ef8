package refresh_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/craneiq/cranesight/internal/livecache"
	"github.com/craneiq/cranesight/internal/models"
	"github.com/craneiq/cranesight/internal/predictor"
	"github.com/craneiq/cranesight/internal/refresh"
	"github.com/craneiq/cranesight/internal/thingspeak"
)

const lastFeedJSON = `{
	"created_at": "2024-03-05T10:00:00Z",
	"entry_id": 42,
	"field1": "55.2",
	"field2": "18.0",
	"field3": "12.5",
	"field4": "6.1",
	"field5": "1.2",
	"field6": "21.0",
	"field7": "3.4",
	"field8": "40.1"
}`

func newTestCache(t *testing.T) *livecache.Cache {
	t.Helper()
	return livecache.New(filepath.Join(t.TempDir(), "model_accuracy.json"))
}

func TestRefreshOncePublishesSnapshot(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lastFeedJSON))
	}))
	t.Cleanup(srv.Close)

	cache := newTestCache(t)
	r := refresh.New(thingspeak.New(srv.URL, "1", "key"), predictor.Unloaded(), cache, time.Second, 3000)

	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}

	snap, ok := cache.Snapshot()
	if !ok {
		t.Fatal("expected snapshot after refresh")
	}
	if snap.Reading.Force != 55.2 {
		t.Errorf("force = %v, want 55.2", snap.Reading.Force)
	}
	// Predictor artifacts are not loaded, so the degraded level applies.
	if snap.Prediction.WarningLevel != models.WarningUnknown {
		t.Errorf("warning level = %s, want unknown", snap.Prediction.WarningLevel)
	}
	if cache.HistoryLen() != 1 {
		t.Errorf("history length = %d, want 1", cache.HistoryLen())
	}
}

func TestFailedRefreshLeavesSnapshotUntouched(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(lastFeedJSON))
	}))
	t.Cleanup(srv.Close)

	cache := newTestCache(t)
	r := refresh.New(thingspeak.New(srv.URL, "1", "key"), predictor.Unloaded(), cache, time.Second, 3000)

	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	before, _ := cache.Snapshot()

	fail.Store(true)
	for i := 0; i < 3; i++ {
		if err := r.RefreshOnce(context.Background()); err == nil {
			t.Fatal("expected fetch error")
		}
	}

	after, ok := cache.Snapshot()
	if !ok {
		t.Fatal("snapshot disappeared after failed refreshes")
	}
	if after != before {
		t.Errorf("snapshot changed across failed refreshes")
	}
	if cache.HistoryLen() != 1 {
		t.Errorf("history grew to %d during failures, want 1", cache.HistoryLen())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lastFeedJSON))
	}))
	t.Cleanup(srv.Close)

	cache := newTestCache(t)
	r := refresh.New(thingspeak.New(srv.URL, "1", "key"), predictor.Unloaded(), cache, 10*time.Millisecond, 3000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// First tick is synchronous, so a snapshot appears quickly.
	deadline := time.After(2 * time.Second)
	for {
		if _, ok := cache.Snapshot(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no snapshot published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
