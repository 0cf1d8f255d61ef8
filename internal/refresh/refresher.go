// Package refresh drives the periodic upstream-fetch-and-publish cycle.
package refresh

import (
	"context"
	"log"
	"time"

	"github.com/craneiq/cranesight/internal/livecache"
	"github.com/craneiq/cranesight/internal/metrics"
	"github.com/craneiq/cranesight/internal/models"
	"github.com/craneiq/cranesight/internal/predictor"
	"github.com/craneiq/cranesight/internal/thingspeak"
)

// DefaultInterval is the refresh cadence.
const DefaultInterval = 10 * time.Second

// Refresher polls ThingSpeak, runs the predictor and publishes into the
// live cache. It is the cache's only snapshot writer, which keeps the
// prediction history strictly ordered.
type Refresher struct {
	ts               *thingspeak.Client
	pred             *predictor.Predictor
	cache            *livecache.Cache
	interval         time.Duration
	operationalHours float64
}

func New(ts *thingspeak.Client, pred *predictor.Predictor, cache *livecache.Cache, interval time.Duration, operationalHours float64) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		ts:               ts,
		pred:             pred,
		cache:            cache,
		interval:         interval,
		operationalHours: operationalHours,
	}
}

// Run refreshes once synchronously so the first request has the best
// chance of finding a snapshot, then ticks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("refresher: shutting down")
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce executes one refresh tick. A fetch failure is logged and
// swallowed: the existing snapshot stays as is (stale-but-present beats
// absent) and nothing is appended to the history ring. There is no retry
// beyond the next scheduled tick.
//
// The fetch and inference both run before the cache lock is ever taken.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	reading, err := r.ts.FetchLatest(ctx)
	if err != nil {
		log.Printf("refresher: fetch latest: %v", err)
		metrics.RefreshTotal.WithLabelValues("fetch_error").Inc()
		return err
	}

	prediction := r.pred.Assess(predictor.Features(reading, r.operationalHours))
	r.cache.Write(reading, prediction, time.Now().UTC())

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	metrics.PredictionsTotal.WithLabelValues(string(prediction.WarningLevel)).Inc()

	if prediction.WarningLevel != models.WarningNormal && prediction.WarningLevel != models.WarningUnknown {
		log.Printf("refresher: %s p=%.3f: %s", prediction.WarningLevel, prediction.Probability, prediction.Message)
	}
	return nil
}
