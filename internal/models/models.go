package models

import "time"

// WarningLevel is the discrete severity classification derived from a
// failure probability.
type WarningLevel string

const (
	WarningNormal   WarningLevel = "normal"
	WarningCaution  WarningLevel = "caution"
	WarningWarning  WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
	WarningUnknown  WarningLevel = "unknown"
	WarningError    WarningLevel = "error"
)

// SensorReading is one fully populated crane telemetry poll. Missing or
// unparsable channel values are normalized to 0.0 by the upstream client
// before a reading is constructed, so every field always carries a value.
type SensorReading struct {
	Timestamp   time.Time `json:"timestamp"`
	Force       float64   `json:"force"`
	Torque      float64   `json:"torque"`
	Altitude    float64   `json:"altitude"`
	WindSpeed   float64   `json:"wind_speed"`
	TiltAngle   float64   `json:"tilt_angle"`
	Temperature float64   `json:"temperature"`
	Vibrations  float64   `json:"vibrations"`
	Humidity    float64   `json:"humidity"`
}

// FieldNumbers maps sensor channel names to their ThingSpeak field numbers.
var FieldNumbers = map[string]int{
	"force":       1,
	"torque":      2,
	"altitude":    3,
	"wind_speed":  4,
	"tilt_angle":  5,
	"temperature": 6,
	"vibrations":  7,
	"humidity":    8,
}

// FieldName returns the sensor channel name for a ThingSpeak field number,
// or "" if the number is out of range.
func FieldName(n int) string {
	for name, num := range FieldNumbers {
		if num == n {
			return name
		}
	}
	return ""
}

// ByNumber returns the channel value for a ThingSpeak field number.
func (r SensorReading) ByNumber(n int) float64 {
	switch n {
	case 1:
		return r.Force
	case 2:
		return r.Torque
	case 3:
		return r.Altitude
	case 4:
		return r.WindSpeed
	case 5:
		return r.TiltAngle
	case 6:
		return r.Temperature
	case 7:
		return r.Vibrations
	case 8:
		return r.Humidity
	}
	return 0
}

// ByName returns the channel value for a sensor channel name, with ok
// reporting whether the name is a known channel.
func (r SensorReading) ByName(name string) (float64, bool) {
	n, ok := FieldNumbers[name]
	if !ok {
		return 0, false
	}
	return r.ByNumber(n), true
}

// Prediction is the model output for one reading.
type Prediction struct {
	Probability  float64      `json:"probability"`
	WarningLevel WarningLevel `json:"warning_level"`
	Message      string       `json:"message"`
}

// Snapshot is the single authoritative (reading, prediction) pair held by
// the live cache. It is replaced wholesale on each successful refresh.
type Snapshot struct {
	Reading    SensorReading `json:"reading"`
	Prediction Prediction    `json:"prediction"`
	CapturedAt time.Time     `json:"captured_at"`
}

// HistoryEntry is one row of the bounded prediction history ring.
type HistoryEntry struct {
	Timestamp    time.Time    `json:"timestamp"`
	Probability  float64      `json:"probability"`
	WarningLevel WarningLevel `json:"warning_level"`
}

// HistoricalPoint is a single point of a historical field series. Value is
// nil when the upstream feed had no usable value for that timestamp; a
// missing point must not silently render as zero on a chart.
type HistoricalPoint struct {
	Timestamp time.Time
	Value     *float64
}

// HistoricalSeries is the result of one ThingSpeak field-range query.
type HistoricalSeries struct {
	Field       string
	FieldNumber int
	Start       time.Time
	End         time.Time
	Points      []HistoricalPoint
}

// AccuracyEvent is one row of the model accuracy change history.
type AccuracyEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy"`
	Notes     string    `json:"notes"`
}

// AccuracyRecord tracks the reported accuracy of the deployed model. It is
// mutated only through administrative updates and persisted in full as a
// JSON document on every change.
type AccuracyRecord struct {
	Value       float64         `json:"value"`
	LastUpdated time.Time       `json:"last_updated"`
	History     []AccuracyEvent `json:"history,omitempty"`
}
