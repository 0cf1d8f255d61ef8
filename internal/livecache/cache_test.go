package livecache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/craneiq/cranesight/internal/models"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "model_accuracy.json"))
}

func entryAt(ts time.Time, prob float64) (models.SensorReading, models.Prediction) {
	return models.SensorReading{Timestamp: ts, Force: prob * 100},
		models.Prediction{Probability: prob, WarningLevel: models.WarningNormal}
}

func TestSnapshotAbsentBeforeFirstWrite(t *testing.T) {
	t.Parallel()
	c := testCache(t)

	if _, ok := c.Snapshot(); ok {
		t.Fatal("expected no snapshot before first write")
	}
	if n := c.HistoryLen(); n != 0 {
		t.Fatalf("history length = %d, want 0", n)
	}
}

func TestReadAfterWrite(t *testing.T) {
	t.Parallel()
	c := testCache(t)

	reading := models.SensorReading{Timestamp: time.Now().UTC(), Force: 55.2, Humidity: 40.1}
	prediction := models.Prediction{Probability: 0.42, WarningLevel: models.WarningCaution, Message: "m"}
	captured := time.Now().UTC()

	c.Write(reading, prediction, captured)

	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("expected snapshot after write")
	}
	if snap.Reading != reading {
		t.Errorf("reading = %+v, want %+v", snap.Reading, reading)
	}
	if snap.Prediction != prediction {
		t.Errorf("prediction = %+v, want %+v", snap.Prediction, prediction)
	}
	if !snap.CapturedAt.Equal(captured) {
		t.Errorf("capturedAt = %v, want %v", snap.CapturedAt, captured)
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	t.Parallel()
	c := testCache(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < HistoryCapacity+1; i++ {
		r, p := entryAt(base.Add(time.Duration(i)*time.Second), float64(i)/1000)
		c.Write(r, p, time.Now())
	}

	got := c.History(0, HistoryCapacity+10)
	if len(got) != HistoryCapacity {
		t.Fatalf("ring length = %d, want %d", len(got), HistoryCapacity)
	}
	// Entry 0 evicted; order preserved for the rest.
	if !got[0].Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("oldest entry = %v, want %v", got[0].Timestamp, base.Add(time.Second))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestHistoryFilterThenLimit(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	// 5 old entries outside the window, 4 recent inside.
	for i := 0; i < 5; i++ {
		r, p := entryAt(now.Add(-48*time.Hour).Add(time.Duration(i)*time.Minute), 0.1)
		c.Write(r, p, now)
	}
	for i := 0; i < 4; i++ {
		r, p := entryAt(now.Add(-time.Hour).Add(time.Duration(i)*time.Minute), 0.2)
		c.Write(r, p, now)
	}

	// Filter first (drops the 5 old), then keep the last 2 of the filtered 4.
	got := c.History(24*time.Hour, 2)
	if len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.Probability != 0.2 {
			t.Errorf("filtered set includes old entry %+v", e)
		}
	}
	if !got[1].Timestamp.Equal(now.Add(-time.Hour).Add(3 * time.Minute)) {
		t.Errorf("expected the most recent entries, got %v", got[1].Timestamp)
	}
}

func TestHistoryZeroLimit(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	r, p := entryAt(time.Now().UTC(), 0.5)
	c.Write(r, p, time.Now())

	if got := c.History(0, 0); len(got) != 0 {
		t.Errorf("History(limit=0) = %d entries, want 0", len(got))
	}
}

func TestGetOrFetchHistoricalCachesWithinTTL(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	key := HistoricalKey{Field: "force", Days: 7, Results: 1000}

	calls := 0
	producer := func() (models.HistoricalSeries, error) {
		calls++
		return models.HistoricalSeries{Field: "force", FieldNumber: 1}, nil
	}

	for i := 0; i < 3; i++ {
		series, err := c.GetOrFetchHistorical(key, 30*time.Minute, producer)
		if err != nil {
			t.Fatal(err)
		}
		if series.Field != "force" {
			t.Errorf("series field = %q", series.Field)
		}
	}
	if calls != 1 {
		t.Errorf("producer called %d times, want 1", calls)
	}
}

func TestGetOrFetchHistoricalExpires(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	now := time.Now()
	c.now = func() time.Time { return now }
	key := HistoricalKey{Field: "torque", Days: 1, Results: 100}

	calls := 0
	producer := func() (models.HistoricalSeries, error) {
		calls++
		return models.HistoricalSeries{Field: "torque"}, nil
	}

	c.GetOrFetchHistorical(key, 30*time.Minute, producer)
	now = now.Add(31 * time.Minute)
	c.GetOrFetchHistorical(key, 30*time.Minute, producer)

	if calls != 2 {
		t.Errorf("producer called %d times after expiry, want 2", calls)
	}
}

func TestGetOrFetchHistoricalFailureNotCached(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	key := HistoricalKey{Field: "altitude", Days: 7, Results: 1000}
	boom := errors.New("upstream down")

	calls := 0
	failing := func() (models.HistoricalSeries, error) {
		calls++
		return models.HistoricalSeries{}, boom
	}

	if _, err := c.GetOrFetchHistorical(key, time.Hour, failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want producer error unchanged", err)
	}

	// The failure must not have poisoned the entry: next call fetches again.
	ok := func() (models.HistoricalSeries, error) {
		calls++
		return models.HistoricalSeries{Field: "altitude"}, nil
	}
	if _, err := c.GetOrFetchHistorical(key, time.Hour, ok); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("producer calls = %d, want 2", calls)
	}
}

func TestUpdateAccuracyValidation(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	before := c.Accuracy()

	for _, bad := range []float64{1.5, -0.1, 2} {
		if _, err := c.UpdateAccuracy(bad, "", false); !errors.Is(err, ErrAccuracyRange) {
			t.Errorf("UpdateAccuracy(%v) err = %v, want ErrAccuracyRange", bad, err)
		}
	}

	after := c.Accuracy()
	if after.Value != before.Value {
		t.Errorf("accuracy changed after rejected update: %v -> %v", before.Value, after.Value)
	}
}

func TestUpdateAccuracyPersistsAndReloads(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "model_accuracy.json")

	c := New(path)
	if got := c.Accuracy().Value; got != 0.92 {
		t.Fatalf("default accuracy = %v, want 0.92", got)
	}

	rec, err := c.UpdateAccuracy(0.875, "quarterly validation", true)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Value != 0.875 || len(rec.History) != 1 {
		t.Fatalf("record = %+v", rec)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("accuracy file not written: %v", err)
	}

	// A fresh cache loads the persisted record, not the default.
	c2 := New(path)
	got := c2.Accuracy()
	if got.Value != 0.875 {
		t.Errorf("reloaded accuracy = %v, want 0.875", got.Value)
	}
	if len(got.History) != 1 || got.History[0].Notes != "quarterly validation" {
		t.Errorf("reloaded history = %+v", got.History)
	}
}

func TestUpdateAccuracyHistoryCap(t *testing.T) {
	t.Parallel()
	c := testCache(t)

	for i := 0; i <= accuracyHistoryCap; i++ {
		if _, err := c.UpdateAccuracy(0.5, fmt.Sprintf("update %d", i), true); err != nil {
			t.Fatal(err)
		}
	}

	rec := c.Accuracy()
	if len(rec.History) != accuracyHistoryCap {
		t.Fatalf("history length = %d, want %d", len(rec.History), accuracyHistoryCap)
	}
	if rec.History[0].Notes != "update 1" {
		t.Errorf("oldest kept entry = %q, want update 1", rec.History[0].Notes)
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	t.Parallel()
	c := testCache(t)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			r, p := entryAt(time.Now().UTC(), 0.4)
			c.Write(r, p, time.Now())
		}
	}()

	for i := 0; i < 500; i++ {
		c.Snapshot()
		c.History(time.Hour, 10)
	}
	<-done
}
