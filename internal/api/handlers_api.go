package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/craneiq/cranesight/internal/livecache"
	"github.com/craneiq/cranesight/internal/models"
)

type sensorsPayload struct {
	Force       float64 `json:"force"`
	Torque      float64 `json:"torque"`
	Altitude    float64 `json:"altitude"`
	WindSpeed   float64 `json:"wind_speed"`
	TiltAngle   float64 `json:"tilt_angle"`
	Temperature float64 `json:"temperature"`
	Vibrations  float64 `json:"vibrations"`
	Humidity    float64 `json:"humidity"`
}

func sensorsFrom(r models.SensorReading) sensorsPayload {
	return sensorsPayload{
		Force:       r.Force,
		Torque:      r.Torque,
		Altitude:    r.Altitude,
		WindSpeed:   r.WindSpeed,
		TiltAngle:   r.TiltAngle,
		Temperature: r.Temperature,
		Vibrations:  r.Vibrations,
		Humidity:    r.Humidity,
	}
}

func rawFieldsFrom(r models.SensorReading) map[string]float64 {
	raw := make(map[string]float64, 8)
	for i := 1; i <= 8; i++ {
		raw[fmt.Sprintf("field%d", i)] = r.ByNumber(i)
	}
	return raw
}

type liveDataResponse struct {
	Success            bool                `json:"success"`
	Timestamp          time.Time           `json:"timestamp"`
	LastUpdated        time.Time           `json:"last_updated"`
	Sensors            sensorsPayload      `json:"sensors"`
	FailureProbability float64             `json:"failure_probability"`
	WarningLevel       models.WarningLevel `json:"warning_level"`
	WarningMessage     string              `json:"warning_message"`
}

func (s *Server) handleLiveData(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.cache.Snapshot()
	if !ok {
		s.writeError(w, http.StatusOK, "No data available yet")
		return
	}

	s.writeJSON(w, http.StatusOK, liveDataResponse{
		Success:            true,
		Timestamp:          snap.Reading.Timestamp,
		LastUpdated:        snap.CapturedAt,
		Sensors:            sensorsFrom(snap.Reading),
		FailureProbability: snap.Prediction.Probability,
		WarningLevel:       snap.Prediction.WarningLevel,
		WarningMessage:     snap.Prediction.Message,
	})
}

type predictionPayload struct {
	FailureProbability float64             `json:"failure_probability"`
	WarningLevel       models.WarningLevel `json:"warning_level"`
	Message            string              `json:"message"`
}

type dataResponse struct {
	Success     bool               `json:"success"`
	Timestamp   time.Time          `json:"timestamp"`
	LastUpdated time.Time          `json:"last_updated"`
	Data        sensorsPayload     `json:"data"`
	RawFields   map[string]float64 `json:"raw_fields"`
	ChannelID   string             `json:"channel_id"`
	Prediction  *predictionPayload `json:"prediction,omitempty"`
}

// handleData serves the full field payload. When no refresh has succeeded
// yet it tries one direct upstream fetch rather than turning clients away;
// the result is served but never written into the snapshot, which stays
// owned by the refresh loop.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	var reading models.SensorReading
	var prediction *predictionPayload

	snap, ok := s.cache.Snapshot()
	if ok {
		reading = snap.Reading
		prediction = &predictionPayload{
			FailureProbability: snap.Prediction.Probability,
			WarningLevel:       snap.Prediction.WarningLevel,
			Message:            snap.Prediction.Message,
		}
	} else {
		fetched, err := s.ts.FetchLatest(r.Context())
		if err != nil {
			s.writeError(w, http.StatusOK, "Unable to fetch data from ThingSpeak")
			return
		}
		reading = fetched
	}

	s.writeJSON(w, http.StatusOK, dataResponse{
		Success:     true,
		Timestamp:   reading.Timestamp,
		LastUpdated: time.Now().UTC(),
		Data:        sensorsFrom(reading),
		RawFields:   rawFieldsFrom(reading),
		ChannelID:   s.ts.ChannelID(),
		Prediction:  prediction,
	})
}

type modelInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type accuracyResponse struct {
	Success     bool                   `json:"success"`
	Accuracy    any                    `json:"accuracy"`
	RawAccuracy float64                `json:"raw_accuracy"`
	LastUpdated time.Time              `json:"last_updated"`
	ModelInfo   modelInfo              `json:"model_info"`
	History     []models.AccuracyEvent `json:"history,omitempty"`
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	rec := s.cache.Accuracy()

	var formatted any = rec.Value
	if r.URL.Query().Get("format") != "decimal" {
		formatted = fmt.Sprintf("%.2f%%", rec.Value*100)
	}

	info := modelInfo{Name: "crane_model.json", Type: "Unknown", Status: "Not loaded"}
	if s.pred.Loaded() {
		info.Type = "Neural Network"
		info.Status = "Loaded"
	}

	s.writeJSON(w, http.StatusOK, accuracyResponse{
		Success:     true,
		Accuracy:    formatted,
		RawAccuracy: rec.Value,
		LastUpdated: rec.LastUpdated,
		ModelInfo:   info,
		History:     rec.History,
	})
}

type accuracyUpdateRequest struct {
	Accuracy     *float64 `json:"accuracy"`
	TrackHistory bool     `json:"track_history"`
	Notes        string   `json:"notes"`
}

func (s *Server) handleAccuracyUpdate(w http.ResponseWriter, r *http.Request) {
	var req accuracyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Accuracy == nil {
		s.writeError(w, http.StatusBadRequest, "Missing required field: accuracy")
		return
	}

	rec, err := s.cache.UpdateAccuracy(*req.Accuracy, req.Notes, req.TrackHistory)
	if err != nil {
		if errors.Is(err, livecache.ErrAccuracyRange) {
			s.writeError(w, http.StatusBadRequest, "Accuracy must be between 0 and 1")
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error updating model accuracy: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Accuracy updated successfully",
		"accuracy": rec.Value,
	})
}

type historyResponse struct {
	Success bool                  `json:"success"`
	History []models.HistoryEntry `json:"history"`
}

func (s *Server) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	limit := queryInt(r, "limit", 100)

	var window time.Duration
	if days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}

	history := s.cache.History(window, limit)
	if history == nil {
		history = []models.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Success: true, History: history})
}

type historicalDataResponse struct {
	Success     bool       `json:"success"`
	Field       string     `json:"field"`
	FieldNumber int        `json:"field_number"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Timestamps  []string   `json:"timestamps"`
	Values      []*float64 `json:"values"`
	Count       int        `json:"count"`
}

func (s *Server) handleHistoricalData(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	fieldNumber, ok := models.FieldNumbers[field]
	if !ok {
		s.writeError(w, http.StatusOK, "Invalid field")
		return
	}

	days := queryInt(r, "days", 7)
	results := queryInt(r, "results", 1000)
	average := r.URL.Query().Get("average")

	key := livecache.HistoricalKey{Field: field, Days: days, Results: results, Average: average}
	series, err := s.cache.GetOrFetchHistorical(key, historicalTTL, func() (models.HistoricalSeries, error) {
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -days)
		return s.ts.FetchField(r.Context(), fieldNumber, start, end, results, average)
	})
	if err != nil {
		s.writeError(w, http.StatusOK, err.Error())
		return
	}

	resp := historicalDataResponse{
		Success:     true,
		Field:       field,
		FieldNumber: fieldNumber,
		StartDate:   series.Start.Format("2006-01-02T15:04:05Z"),
		EndDate:     series.End.Format("2006-01-02T15:04:05Z"),
		Timestamps:  make([]string, 0, len(series.Points)),
		Values:      make([]*float64, 0, len(series.Points)),
	}
	for _, p := range series.Points {
		resp.Timestamps = append(resp.Timestamps, p.Timestamp.Format("2006-01-02T15:04:05Z"))
		resp.Values = append(resp.Values, p.Value)
	}
	resp.Count = len(resp.Timestamps)

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !s.pred.Loaded() {
		s.writeError(w, http.StatusOK, "ML model or scaler not loaded")
		return
	}

	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || len(input) == 0 {
		s.writeError(w, http.StatusOK, "No data provided")
		return
	}

	features := map[string]float64{
		"force":             numeric(input, "force", 0),
		"torque":            numeric(input, "torque", 0),
		"altitude":          numeric(input, "altitude", 0),
		"wind_speed":        numeric(input, "wind_speed", 0),
		"humidity":          numeric(input, "humidity", 0),
		"temperature":       numeric(input, "temperature", 0),
		"vibrations":        numeric(input, "vibrations", 0),
		"operational_hours": numeric(input, "operational_hours", s.cfg.OperationalHours),
	}

	pred := s.pred.Assess(features)
	if pred.WarningLevel == models.WarningError {
		s.writeError(w, http.StatusOK, pred.Message)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"input":      input,
		"prediction": pred,
	})
}

type embedResponse struct {
	Success         bool   `json:"success"`
	Field           string `json:"field"`
	FieldNumber     int    `json:"field_number"`
	ChartURL        string `json:"chart_url"`
	ChartDaysURL    string `json:"chart_days_url"`
	DynamicChartURL string `json:"dynamic_chart_url"`
	IframeHTML      string `json:"iframe_html"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	fieldNumber, ok := models.FieldNumbers[field]
	if !ok {
		s.writeError(w, http.StatusOK, "Invalid field")
		return
	}

	days := queryInt(r, "days", 7)
	width := r.URL.Query().Get("width")
	if width == "" {
		width = "100%"
	}
	height := r.URL.Query().Get("height")
	if height == "" {
		height = "400"
	}

	s.writeJSON(w, http.StatusOK, embedResponse{
		Success:         true,
		Field:           field,
		FieldNumber:     fieldNumber,
		ChartURL:        s.ts.ChartURL(fieldNumber),
		ChartDaysURL:    s.ts.ChartDaysURL(fieldNumber, days),
		DynamicChartURL: s.ts.DynamicChartURL(fieldNumber, days),
		IframeHTML:      s.ts.IframeHTML(fieldNumber, days, width, height),
	})
}

func (s *Server) handleEmbedDashboard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"dashboard_url":         s.ts.DashboardURL(),
		"private_dashboard_url": s.ts.PrivateDashboardURL(),
	})
}

type healthResponse struct {
	Status      string  `json:"status"`
	HasSnapshot bool    `json:"has_snapshot"`
	AgeSeconds  float64 `json:"age_seconds,omitempty"`
	Stale       bool    `json:"stale"`
	ModelLoaded bool    `json:"model_loaded"`
}

// staleThreshold is generous next to the 10s refresh cadence: a handful of
// consecutive upstream failures is tolerable, a minute of them is not.
const staleThreshold = time.Minute

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:      "ok",
		ModelLoaded: s.pred.Loaded(),
	}

	snap, ok := s.cache.Snapshot()
	health.HasSnapshot = ok
	if ok {
		age := time.Since(snap.CapturedAt)
		health.AgeSeconds = age.Seconds()
		health.Stale = age > staleThreshold
	} else {
		health.Stale = true
	}

	if health.Stale {
		health.Status = "degraded"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// numeric pulls a float out of decoded JSON, accepting numbers and
// numeric strings the way the upstream feed serves them.
func numeric(input map[string]any, name string, def float64) float64 {
	raw, ok := input[name]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}
