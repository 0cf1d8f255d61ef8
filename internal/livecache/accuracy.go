package livecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/craneiq/cranesight/internal/models"
)

// ErrAccuracyRange is returned when an administrative accuracy update is
// outside [0,1].
var ErrAccuracyRange = errors.New("accuracy must be between 0 and 1")

// accuracyHistoryCap bounds the accuracy change log, FIFO like the
// prediction ring.
const accuracyHistoryCap = 100

func defaultAccuracy() models.AccuracyRecord {
	return models.AccuracyRecord{
		Value:       0.92,
		LastUpdated: time.Now().UTC(),
	}
}

func loadAccuracy(path string) (models.AccuracyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultAccuracy(), nil
		}
		return models.AccuracyRecord{}, err
	}

	var rec models.AccuracyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.AccuracyRecord{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return rec, nil
}

// persistAccuracy writes the full record as one JSON document, via a temp
// file and rename so a crash mid-write cannot truncate the stored record.
func persistAccuracy(path string, rec models.AccuracyRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Accuracy returns a copy of the current accuracy record.
func (c *Cache) Accuracy() models.AccuracyRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec := c.accuracy
	rec.History = append([]models.AccuracyEvent(nil), c.accuracy.History...)
	return rec
}

// UpdateAccuracy validates and applies an administrative accuracy update.
// The full record is persisted before the in-memory state changes, so a
// failed write leaves both the file and the cache untouched.
func (c *Cache) UpdateAccuracy(value float64, notes string, trackHistory bool) (models.AccuracyRecord, error) {
	if value < 0 || value > 1 {
		return models.AccuracyRecord{}, ErrAccuracyRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	updated := c.accuracy
	updated.History = append([]models.AccuracyEvent(nil), c.accuracy.History...)
	updated.Value = value
	updated.LastUpdated = c.now().UTC()

	if trackHistory {
		updated.History = append(updated.History, models.AccuracyEvent{
			Timestamp: updated.LastUpdated,
			Accuracy:  value,
			Notes:     notes,
		})
		if len(updated.History) > accuracyHistoryCap {
			updated.History = updated.History[len(updated.History)-accuracyHistoryCap:]
		}
	}

	if err := persistAccuracy(c.accuracyPath, updated); err != nil {
		return models.AccuracyRecord{}, fmt.Errorf("persist accuracy: %w", err)
	}

	c.accuracy = updated
	return updated, nil
}
