// Package nominatim reverse geocodes coordinates with an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap instance. Its usage policy allows
// at most one request per second and requires an identifying User-Agent.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Options configures a Client.
type Options struct {
	BaseURL   string
	Language  string
	UserAgent string
	Timeout   time.Duration
	// RateLimit is the maximum number of requests per second; 0 disables limiting.
	RateLimit float64
}

// Client implements domain.Geocoder using the Nominatim /reverse endpoint.
type Client struct {
	baseURL    string
	language   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   opts.Language,
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		metrics:    metrics,
		logger:     logger,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// ReverseGeocode converts coordinates to administrative address fields. An
// "Unable to geocode" answer (open sea, outside coverage) is an empty address,
// not an error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Address{}, fmt.Errorf("%w: nominatim rate limit: %w", domain.ErrGeocodeTimeout, err)
		}
	}

	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', 6, 64)},
		"zoom":           {"10"},
		"addressdetails": {"1"},
	}

	start := time.Now()
	addr, err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode())
	if c.metrics != nil {
		c.metrics.GeocodeAPIDuration.WithLabelValues("nominatim").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Debug("nominatim reverse geocode failed", "lat", lat, "lon", lon, "error", err)
	}
	return addr, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if domain.IsTimeout(err) {
			return domain.Address{}, fmt.Errorf("%w: nominatim: %w", domain.ErrGeocodeTimeout, err)
		}
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.Address{}, fmt.Errorf("%w: nominatim: status %d", domain.ErrGeocodeTimeout, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Address{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		if domain.IsTimeout(err) {
			return domain.Address{}, fmt.Errorf("%w: nominatim: %w", domain.ErrGeocodeTimeout, err)
		}
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Error != "" {
		if strings.Contains(strings.ToLower(r.Error), "unable to geocode") {
			return domain.Address{}, nil
		}
		return domain.Address{}, fmt.Errorf("nominatim: %s", r.Error)
	}

	return domain.Address{
		City:          r.Address.City,
		Town:          r.Address.Town,
		Village:       r.Address.Village,
		Municipality:  r.Address.Municipality,
		County:        r.Address.County,
		StateDistrict: r.Address.StateDistrict,
		State:         r.Address.State,
		Country:       r.Address.Country,
		DisplayName:   r.DisplayName,
	}, nil
}

// Nominatim API response types.

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Municipality  string `json:"municipality"`
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
	Country       string `json:"country"`
}
