package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		token:      testToken,
		language:   "pt",
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "-60.025000,-3.101900.json")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "pt", r.URL.Query().Get("language"))
		assert.Equal(t, "place,locality,district,region", r.URL.Query().Get("types"))

		resp := response{
			Features: []feature{
				{
					ID:        "place.8913",
					Text:      "Manaus",
					PlaceName: "Manaus, Amazonas, Brasil",
					Context: []contextItem{
						{ID: "region.1204", Text: "Amazonas"},
						{ID: "country.58", Text: "Brasil"},
					},
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	addr, err := c.ReverseGeocode(context.Background(), -3.1019, -60.025)
	require.NoError(t, err)

	assert.Equal(t, "Manaus", addr.City)
	assert.Equal(t, "Amazonas", addr.State)
	assert.Equal(t, "Brasil", addr.Country)
	assert.Equal(t, "Manaus, Amazonas, Brasil", addr.DisplayName)
	assert.Equal(t, "Manaus", addr.Locality())
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.GeocodeAPIDuration))
}

func TestClient_ReverseGeocode_RegionOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := response{Features: []feature{{ID: "region.1204", Text: "Amazonas"}}}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	addr, err := testClient(srv.URL, 5*time.Second).ReverseGeocode(context.Background(), -5, -65)
	require.NoError(t, err)
	assert.Equal(t, "Amazonas", addr.State)
	assert.Empty(t, addr.Locality())
}

func TestClient_ReverseGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	addr, err := testClient(srv.URL, 5*time.Second).ReverseGeocode(context.Background(), -30, -20)
	require.NoError(t, err)
	assert.Equal(t, domain.Address{}, addr)
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).ReverseGeocode(context.Background(), -3.1, -60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.False(t, errors.Is(err, domain.ErrGeocodeTimeout))
}

func TestClient_ReverseGeocode_GatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).ReverseGeocode(context.Background(), -3.1, -60)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocodeTimeout)
}

func TestClient_ReverseGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).ReverseGeocode(context.Background(), -3.1, -60)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocodeTimeout)
}
