package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/craneiq/cranesight/internal/metrics"
	"github.com/craneiq/cranesight/internal/models"
)

type streamEvent struct {
	Timestamp          time.Time           `json:"timestamp"`
	Sensors            sensorsPayload      `json:"sensors"`
	FailureProbability float64             `json:"failure_probability"`
	WarningLevel       models.WarningLevel `json:"warning_level"`
	WarningMessage     string              `json:"warning_message"`
}

// handleStreamData serves a server-sent event stream. Each subscriber gets
// its own ticker at the stream cadence, independent of the refresh cadence;
// a tick with no snapshot emits nothing and simply waits for the next one.
// Subscribers only read the cache, so a slow consumer cannot block the
// refresh loop or any other subscriber. The loop ends when the transport
// reports disconnection via the request context.
func (s *Server) handleStreamData(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, ok := s.cache.Snapshot()
			if !ok {
				continue
			}

			payload, err := json.Marshal(streamEvent{
				Timestamp:          snap.Reading.Timestamp,
				Sensors:            sensorsFrom(snap.Reading),
				FailureProbability: snap.Prediction.Probability,
				WarningLevel:       snap.Prediction.WarningLevel,
				WarningMessage:     snap.Prediction.Message,
			})
			if err != nil {
				log.Printf("stream: marshal event: %v", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
