// Package livecache owns the single authoritative snapshot of the latest
// sensor reading and prediction, the bounded prediction history ring, the
// TTL'd historical query cache and the model accuracy record. All state
// sits behind one mutex; the lock only ever covers in-memory work, never
// upstream fetches or model inference.
package livecache

import (
	"log"
	"sync"
	"time"

	"github.com/craneiq/cranesight/internal/models"
)

// HistoryCapacity bounds the prediction history ring. The oldest entry is
// evicted first once full.
const HistoryCapacity = 100

// HistoricalKey identifies one historical query result.
type HistoricalKey struct {
	Field   string
	Days    int
	Results int
	Average string
}

type historicalEntry struct {
	series    models.HistoricalSeries
	fetchedAt time.Time
}

// Cache is safe for concurrent use. The refresh loop is the sole writer of
// the snapshot and ring, so ring order is refresh order.
type Cache struct {
	mu           sync.RWMutex
	snapshot     models.Snapshot
	hasSnapshot  bool
	history      []models.HistoryEntry
	historical   map[HistoricalKey]historicalEntry
	accuracy     models.AccuracyRecord
	accuracyPath string

	now func() time.Time // stubbed in tests
}

// New returns an empty cache. The accuracy record is loaded from
// accuracyPath if the file exists, otherwise the built-in default applies.
func New(accuracyPath string) *Cache {
	c := &Cache{
		historical:   make(map[HistoricalKey]historicalEntry),
		accuracyPath: accuracyPath,
		now:          time.Now,
	}

	acc, err := loadAccuracy(accuracyPath)
	if err != nil {
		log.Printf("livecache: load accuracy: %v (using default)", err)
		acc = defaultAccuracy()
	}
	c.accuracy = acc

	return c
}

// Write atomically replaces the snapshot and appends to the prediction
// history ring, evicting the oldest entry when full. It is called only by
// the refresh loop.
func (c *Cache) Write(reading models.SensorReading, prediction models.Prediction, capturedAt time.Time) {
	entry := models.HistoryEntry{
		Timestamp:    reading.Timestamp,
		Probability:  prediction.Probability,
		WarningLevel: prediction.WarningLevel,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = models.Snapshot{
		Reading:    reading,
		Prediction: prediction,
		CapturedAt: capturedAt,
	}
	c.hasSnapshot = true

	if len(c.history) >= HistoryCapacity {
		c.history = append(c.history[:0], c.history[1:]...)
		c.history[len(c.history)-1] = entry
	} else {
		c.history = append(c.history, entry)
	}
}

// Snapshot returns the current snapshot. ok is false until the first
// successful refresh; absence is a normal state every reader handles.
func (c *Cache) Snapshot() (models.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnapshot
}

// History returns a copy of the ring filtered to entries newer than
// now-window (when window > 0), then truncated to the most recent limit
// entries. Filtering runs before truncation. A non-positive limit returns
// an empty slice.
func (c *Cache) History(window time.Duration, limit int) []models.HistoryEntry {
	if limit <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	filtered := c.history
	if window > 0 {
		cutoff := c.now().Add(-window)
		start := 0
		for start < len(filtered) && !filtered[start].Timestamp.After(cutoff) {
			start++
		}
		filtered = filtered[start:]
	}

	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	out := make([]models.HistoryEntry, len(filtered))
	copy(out, filtered)
	return out
}

// HistoryLen returns the current ring length.
func (c *Cache) HistoryLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

// GetOrFetchHistorical returns the cached series for key when it is
// younger than ttl, otherwise invokes producer and stores its result. A
// producer failure stores nothing and is returned unchanged.
//
// Concurrent misses on the same key may each run the producer; the
// redundant fetch is accepted so the lock never spans upstream I/O, and
// correctness only requires eventual freshness.
func (c *Cache) GetOrFetchHistorical(key HistoricalKey, ttl time.Duration, producer func() (models.HistoricalSeries, error)) (models.HistoricalSeries, error) {
	c.mu.RLock()
	entry, ok := c.historical[key]
	now := c.now()
	c.mu.RUnlock()

	if ok && now.Sub(entry.fetchedAt) < ttl {
		return entry.series, nil
	}

	series, err := producer()
	if err != nil {
		return models.HistoricalSeries{}, err
	}

	c.mu.Lock()
	c.historical[key] = historicalEntry{series: series, fetchedAt: c.now()}
	c.mu.Unlock()

	return series, nil
}
