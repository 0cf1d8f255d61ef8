package api

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craneiq/cranesight/internal/livecache"
	"github.com/craneiq/cranesight/internal/predictor"
	"github.com/craneiq/cranesight/internal/thingspeak"
)

//go:embed templates/*
var templateFS embed.FS

// historicalTTL bounds how long a historical query result is served from
// cache before ThingSpeak is asked again.
const historicalTTL = 30 * time.Minute

// Config carries the server's tunables.
type Config struct {
	Port             string
	StreamInterval   time.Duration
	OperationalHours float64
}

type Server struct {
	cache *livecache.Cache
	ts    *thingspeak.Client
	pred  *predictor.Predictor
	cfg   Config
	tmpl  *template.Template
}

func NewServer(cache *livecache.Cache, ts *thingspeak.Client, pred *predictor.Predictor, cfg Config) *Server {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = time.Second
	}
	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

	return &Server{
		cache: cache,
		ts:    ts,
		pred:  pred,
		cfg:   cfg,
		tmpl:  tmpl,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/dashboard/{field}", s.handleFieldDashboard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/live_data", s.handleLiveData)
	mux.HandleFunc("GET /api/data", s.handleData)
	mux.HandleFunc("GET /api/stream_data", s.handleStreamData)
	mux.HandleFunc("GET /api/accuracy", s.handleAccuracy)
	mux.HandleFunc("POST /api/accuracy/update", s.handleAccuracyUpdate)
	mux.HandleFunc("GET /api/prediction_history", s.handlePredictionHistory)
	mux.HandleFunc("GET /api/historical_data/{field}", s.handleHistoricalData)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("GET /api/thingspeak/embed/{field}", s.handleEmbed)
	mux.HandleFunc("GET /api/thingspeak/dashboard", s.handleEmbedDashboard)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

// errorResponse is the structured failure payload every endpoint falls
// back to; clients never see an unstructured crash.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
