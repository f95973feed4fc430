package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	language   string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token, language string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:    token,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to administrative address fields.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,district,region"},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	start := time.Now()
	addr, err := c.doRequest(ctx, u+"?"+params.Encode())
	if c.metrics != nil {
		c.metrics.GeocodeAPIDuration.WithLabelValues("mapbox").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Debug("mapbox reverse geocode failed", "lat", lat, "lon", lon, "error", err)
	}
	return addr, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if domain.IsTimeout(err) {
			return domain.Address{}, fmt.Errorf("%w: mapbox: %w", domain.ErrGeocodeTimeout, err)
		}
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.Address{}, fmt.Errorf("%w: mapbox: status %d", domain.ErrGeocodeTimeout, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Address{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		if domain.IsTimeout(err) {
			return domain.Address{}, fmt.Errorf("%w: mapbox: %w", domain.ErrGeocodeTimeout, err)
		}
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.Address{}, nil
	}
	return mapboxResp.Features[0].address(), nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string        `json:"id"`
	PlaceName string        `json:"place_name"`
	Text      string        `json:"text"`
	Context   []contextItem `json:"context"`
}

type contextItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// address maps the feature and its context onto address fields by the
// type prefix of each id ("place.123", "region.456").
func (f feature) address() domain.Address {
	addr := domain.Address{DisplayName: f.PlaceName}
	items := append([]contextItem{{ID: f.ID, Text: f.Text}}, f.Context...)
	for _, item := range items {
		kind, _, _ := strings.Cut(item.ID, ".")
		switch kind {
		case "place":
			addr.City = item.Text
		case "locality":
			addr.Village = item.Text
		case "district":
			addr.County = item.Text
		case "region":
			addr.State = item.Text
		case "country":
			addr.Country = item.Text
		}
	}
	return addr
}
