// Package openmeteo implements domain.WeatherProvider against the Open-Meteo
// historical archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// DefaultBaseURL is the archive endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// Location is the point and zone the daily series is requested for.
type Location struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// StLouis is the default request location.
var StLouis = Location{Latitude: 38.627, Longitude: -90.199, Timezone: "America/Chicago"}

// Client implements domain.WeatherProvider. Requests are not retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	location   Location
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo archive client.
func NewClient(baseURL string, location Location, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		location: location,
		metrics:  metrics,
		logger:   logger,
	}
}

// FetchDaily returns the year's daily high/low in Fahrenheit and
// precipitation in inches keyed by ISO date.
func (c *Client) FetchDaily(ctx context.Context, year int) (map[string]domain.WeatherDay, error) {
	params := url.Values{
		"latitude":           {strconv.FormatFloat(c.location.Latitude, 'f', -1, 64)},
		"longitude":          {strconv.FormatFloat(c.location.Longitude, 'f', -1, 64)},
		"start_date":         {fmt.Sprintf("%d-01-01", year)},
		"end_date":           {fmt.Sprintf("%d-12-31", year)},
		"daily":              {"temperature_2m_max,temperature_2m_min,precipitation_sum"},
		"temperature_unit":   {"fahrenheit"},
		"precipitation_unit": {"inch"},
		"timezone":           {c.location.Timezone},
	}

	start := time.Now()
	days, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather archive response", "year", year, "days", len(days))
	return days, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (map[string]domain.WeatherDay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var archive response
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return archive.Daily.days(), nil
}

// Open-Meteo API response types.

type response struct {
	Daily daily `json:"daily"`
}

// daily holds parallel arrays indexed by day. Any value may be null.
type daily struct {
	Time   []string   `json:"time"`
	High   []*float64 `json:"temperature_2m_max"`
	Low    []*float64 `json:"temperature_2m_min"`
	Precip []*float64 `json:"precipitation_sum"`
}

func (d daily) days() map[string]domain.WeatherDay {
	out := make(map[string]domain.WeatherDay, len(d.Time))
	for i, date := range d.Time {
		day := domain.WeatherDay{
			High: round(at(d.High, i), 1),
			Low:  round(at(d.Low, i), 1),
		}
		if p := round(at(d.Precip, i), 2); p != nil {
			day.Precip = *p
		}
		out[date] = day
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func round(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	scale := math.Pow(10, float64(places))
	r := math.Round(*v*scale) / scale
	return &r
}
