package thingspeak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/craneiq/cranesight/internal/httputil"
	"github.com/craneiq/cranesight/internal/metrics"
	"github.com/craneiq/cranesight/internal/models"
)

const defaultBaseURL = "https://api.thingspeak.com"

// FetchError covers every upstream failure: transport errors, timeouts and
// non-2xx responses. It is the only error type that crosses the client
// boundary for fetch operations.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("thingspeak %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("thingspeak %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client reads crane telemetry from a ThingSpeak channel.
type Client struct {
	baseURL   string
	channelID string
	readKey   string
	client    *http.Client
}

// New returns a client for the given channel. An empty baseURL selects the
// public ThingSpeak API.
func New(baseURL, channelID, readKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		channelID: channelID,
		readKey:   readKey,
		client:    httputil.NewClient(0),
	}
}

// ChannelID returns the configured channel identifier.
func (c *Client) ChannelID() string { return c.channelID }

type lastFeed struct {
	CreatedAt string  `json:"created_at"`
	Field1    *string `json:"field1"`
	Field2    *string `json:"field2"`
	Field3    *string `json:"field3"`
	Field4    *string `json:"field4"`
	Field5    *string `json:"field5"`
	Field6    *string `json:"field6"`
	Field7    *string `json:"field7"`
	Field8    *string `json:"field8"`
}

// parseField normalizes one raw channel value. ThingSpeak serves each field
// as a numeric string or null; anything absent or unparsable becomes 0.0 so
// a latest reading is always fully populated.
func parseField(raw *string) float64 {
	if raw == nil {
		return 0.0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil {
		return 0.0
	}
	return v
}

// FetchLatest retrieves the most recent reading from the channel. It makes
// exactly one attempt; the refresh loop's next tick is the retry policy.
func (c *Client) FetchLatest(ctx context.Context) (models.SensorReading, error) {
	endpoint := "feeds/last"
	u := fmt.Sprintf("%s/channels/%s/feeds/last.json?api_key=%s", c.baseURL, c.channelID, url.QueryEscape(c.readKey))

	body, err := c.get(ctx, endpoint, u)
	if err != nil {
		return models.SensorReading{}, err
	}

	var feed lastFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return models.SensorReading{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	ts, err := time.Parse(time.RFC3339, feed.CreatedAt)
	if err != nil {
		return models.SensorReading{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("parse created_at: %w", err)}
	}

	return models.SensorReading{
		Timestamp:   ts.UTC(),
		Force:       parseField(feed.Field1),
		Torque:      parseField(feed.Field2),
		Altitude:    parseField(feed.Field3),
		WindSpeed:   parseField(feed.Field4),
		TiltAngle:   parseField(feed.Field5),
		Temperature: parseField(feed.Field6),
		Vibrations:  parseField(feed.Field7),
		Humidity:    parseField(feed.Field8),
	}, nil
}

type fieldFeeds struct {
	Feeds []map[string]any `json:"feeds"`
}

// FetchField retrieves a historical series for one channel field. Points
// whose value is missing or unparsable keep a nil value rather than 0.0.
// averageMinutes, when non-empty, requests server-side time averaging.
func (c *Client) FetchField(ctx context.Context, fieldNumber int, start, end time.Time, maxResults int, averageMinutes string) (models.HistoricalSeries, error) {
	endpoint := fmt.Sprintf("fields/%d", fieldNumber)

	params := url.Values{}
	params.Set("api_key", c.readKey)
	params.Set("start", start.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("end", end.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("results", strconv.Itoa(maxResults))
	if averageMinutes != "" {
		params.Set("average", averageMinutes)
	}
	u := fmt.Sprintf("%s/channels/%s/fields/%d.json?%s", c.baseURL, c.channelID, fieldNumber, params.Encode())

	var body []byte
	operation := func() error {
		b, err := c.get(ctx, endpoint, u)
		if err != nil {
			var fe *FetchError
			// Retry server-side hiccups; anything the server rejected
			// outright will not improve on a second attempt.
			if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return models.HistoricalSeries{}, err
	}

	var data fieldFeeds
	if err := json.Unmarshal(body, &data); err != nil {
		return models.HistoricalSeries{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	series := models.HistoricalSeries{
		Field:       models.FieldName(fieldNumber),
		FieldNumber: fieldNumber,
		Start:       start.UTC(),
		End:         end.UTC(),
	}

	fieldKey := fmt.Sprintf("field%d", fieldNumber)
	for _, feed := range data.Feeds {
		created, _ := feed["created_at"].(string)
		if created == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, created)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, models.HistoricalPoint{
			Timestamp: ts.UTC(),
			Value:     parseSeriesValue(feed[fieldKey]),
		})
	}

	return series, nil
}

// parseSeriesValue normalizes a historical point value. Unlike latest
// readings, a missing historical value stays nil so charts can show gaps.
func parseSeriesValue(raw any) *float64 {
	switch v := raw.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	case float64:
		f := v
		return &f
	default:
		return nil
	}
}

func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}

	timer := time.Now()
	resp, err := c.client.Do(req)
	metrics.ThingSpeakAPILatency.WithLabelValues(endpoint).Observe(time.Since(timer).Seconds())
	if err != nil {
		metrics.ThingSpeakAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	metrics.ThingSpeakAPICallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
