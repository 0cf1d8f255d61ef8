package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/craneiq/cranesight/internal/api"
	"github.com/craneiq/cranesight/internal/livecache"
	"github.com/craneiq/cranesight/internal/predictor"
	"github.com/craneiq/cranesight/internal/refresh"
	"github.com/craneiq/cranesight/internal/thingspeak"
)

var cli struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Path to an optional .env file.'"`

	Port             string        `kong:"default='8080',env='PORT',help='HTTP server port.'"`
	ChannelID        string        `kong:"default='2869932',env='THINGSPEAK_CHANNEL_ID',help='ThingSpeak channel ID.'"`
	ReadKey          string        `kong:"env='THINGSPEAK_READ_KEY',help='ThingSpeak read API key.'"`
	BaseURL          string        `kong:"env='THINGSPEAK_BASE_URL',help='Override the ThingSpeak API base URL.'"`
	Model            string        `kong:"default='models/crane_model.json',env='MODEL_PATH',help='Path to the model weights artifact.'"`
	Scaler           string        `kong:"default='models/scaler.json',env='SCALER_PATH',help='Path to the feature scaler artifact.'"`
	AccuracyFile     string        `kong:"default='data/model_accuracy.json',env='ACCURACY_FILE',help='Path to the persisted accuracy record.'"`
	RefreshInterval  time.Duration `kong:"default='10s',env='REFRESH_INTERVAL',help='Upstream polling cadence.'"`
	StreamInterval   time.Duration `kong:"default='1s',env='STREAM_INTERVAL',help='SSE emission cadence.'"`
	OperationalHours float64       `kong:"default='3000',env='OPERATIONAL_HOURS',help='Assumed crane operational hours fed to the model.'"`
	NoPoll           bool          `kong:"help='Disable polling (server only, for local dev).'"`
	Once             bool          `kong:"help='Refresh once and exit (for testing).'"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("cranesight"),
		kong.Description("Crane predictive-maintenance telemetry dashboard."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	pred, err := predictor.Load(cli.Model, cli.Scaler)
	if err != nil {
		log.Printf("load model: %v (predictions disabled)", err)
		pred = predictor.Unloaded()
	} else {
		log.Println("model and scaler loaded")
	}

	cache := livecache.New(cli.AccuracyFile)
	ts := thingspeak.New(cli.BaseURL, cli.ChannelID, cli.ReadKey)
	refresher := refresh.New(ts, pred, cache, cli.RefreshInterval, cli.OperationalHours)
	server := api.NewServer(cache, ts, pred, api.Config{
		Port:             cli.Port,
		StreamInterval:   cli.StreamInterval,
		OperationalHours: cli.OperationalHours,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cli.Once {
		log.Println("running single refresh")
		if err := refresher.RefreshOnce(ctx); err != nil {
			log.Fatalf("refresh: %v", err)
		}
		log.Println("done")
		return
	}

	if !cli.NoPoll {
		go refresher.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
