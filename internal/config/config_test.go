package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/hotspots", cfg.SourceDir)
	assert.Empty(t, cfg.SourceEndpoint)
	assert.Equal(t, "./data/hotspots/regions.json", cfg.OutputPath)
	assert.Empty(t, cfg.GeoJSONOutputPath)
	assert.Empty(t, cfg.EgressEndpoint)
	assert.Equal(t, 10*time.Second, cfg.EgressTimeout)
	assert.Equal(t, 2, cfg.EgressMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "hotspot-regions", cfg.KafkaSinkTopic)
	assert.Empty(t, cfg.SQLitePath)

	assert.Equal(t, ProviderNominatim, cfg.GeocodeProvider)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocodeEndpoint)
	assert.Equal(t, "pt-BR", cfg.GeocodeLanguage)
	assert.Equal(t, "wildfire-hotspot-etl", cfg.GeocodeUserAgent)
	assert.Equal(t, 10*time.Second, cfg.GeocodeTimeout)
	assert.Equal(t, 1, cfg.GeocodeMaxRetries)
	assert.Equal(t, 4, cfg.GeocodeWorkers)
	assert.InDelta(t, 1.0, cfg.GeocodeRateLimit, 1e-9)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)

	assert.InDelta(t, 10.0, cfg.ClusterEpsKm, 1e-9)
	assert.Equal(t, 2, cfg.ClusterMinPoints)
	assert.Equal(t, 3, cfg.IntensityMediumThreshold)
	assert.Equal(t, 10, cfg.IntensityHighThreshold)
	assert.Equal(t, EmptyBatchAllow, cfg.EmptyBatchPolicy)
	assert.False(t, cfg.RejectEmptyBatch())

	assert.Equal(t, 10*time.Minute, cfg.RunInterval)
	assert.Equal(t, time.Duration(0), cfg.BatchTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SOURCE_DIR", "/srv/focos")
	t.Setenv("SOURCE_ENDPOINT", "https://dataserver-coids.inpe.br/queimadas/queimadas/focos/csv/10min/")
	t.Setenv("OUTPUT_PATH", "/srv/out/regions.json")
	t.Setenv("GEOJSON_OUTPUT_PATH", "/srv/out/regions.geojson")
	t.Setenv("EGRESS_ENDPOINT", "http://consumer:9000/regions")
	t.Setenv("EGRESS_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-regions")
	t.Setenv("SQLITE_PATH", "/srv/out/regions.db")
	t.Setenv("GEOCODE_PROVIDER", "MAPBOX")
	t.Setenv("GEOCODE_LANGUAGE", "en")
	t.Setenv("GEOCODE_USER_AGENT", "ops@example.com")
	t.Setenv("GEOCODE_TIMEOUT", "2s")
	t.Setenv("GEOCODE_MAX_RETRIES", "3")
	t.Setenv("GEOCODE_WORKERS", "8")
	t.Setenv("GEOCODE_RATE_LIMIT", "0")
	t.Setenv("GEOCODE_CACHE_SIZE", "0")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("CLUSTER_EPS_KM", "7.5")
	t.Setenv("CLUSTER_MIN_POINTS", "3")
	t.Setenv("INTENSITY_MEDIUM_THRESHOLD", "5")
	t.Setenv("INTENSITY_HIGH_THRESHOLD", "12")
	t.Setenv("EMPTY_BATCH_POLICY", "reject")
	t.Setenv("RUN_INTERVAL", "1h")
	t.Setenv("BATCH_TIMEOUT", "5m")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/focos", cfg.SourceDir)
	assert.Equal(t, "https://dataserver-coids.inpe.br/queimadas/queimadas/focos/csv/10min/", cfg.SourceEndpoint)
	assert.Equal(t, "/srv/out/regions.json", cfg.OutputPath)
	assert.Equal(t, "/srv/out/regions.geojson", cfg.GeoJSONOutputPath)
	assert.Equal(t, "http://consumer:9000/regions", cfg.EgressEndpoint)
	assert.Equal(t, 3*time.Second, cfg.EgressTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-regions", cfg.KafkaSinkTopic)
	assert.Equal(t, "/srv/out/regions.db", cfg.SQLitePath)
	assert.Equal(t, ProviderMapbox, cfg.GeocodeProvider)
	assert.Equal(t, "en", cfg.GeocodeLanguage)
	assert.Equal(t, "ops@example.com", cfg.GeocodeUserAgent)
	assert.Equal(t, 2*time.Second, cfg.GeocodeTimeout)
	assert.Equal(t, 3, cfg.GeocodeMaxRetries)
	assert.Equal(t, 8, cfg.GeocodeWorkers)
	assert.Zero(t, cfg.GeocodeRateLimit)
	assert.Zero(t, cfg.GeocodeCacheSize)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.InDelta(t, 7.5, cfg.ClusterEpsKm, 1e-9)
	assert.Equal(t, 3, cfg.ClusterMinPoints)
	assert.Equal(t, 5, cfg.IntensityMediumThreshold)
	assert.Equal(t, 12, cfg.IntensityHighThreshold)
	assert.True(t, cfg.RejectEmptyBatch())
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 5*time.Minute, cfg.BatchTimeout)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"EGRESS_TIMEOUT", "0s"},
		{"GEOCODE_TIMEOUT", "bad"},
		{"RUN_INTERVAL", "0"},
		{"BATCH_TIMEOUT", "-5m"},
		{"GEOCODE_MAX_RETRIES", "-1"},
		{"GEOCODE_WORKERS", "0"},
		{"GEOCODE_CACHE_SIZE", "lots"},
		{"GEOCODE_RATE_LIMIT", "-2"},
		{"GEOCODE_RATE_LIMIT", "NaN"},
		{"CLUSTER_EPS_KM", "0"},
		{"CLUSTER_MIN_POINTS", "0"},
		{"INTENSITY_MEDIUM_THRESHOLD", "0"},
		{"GEOCODE_PROVIDER", "google"},
		{"EMPTY_BATCH_POLICY", "ignore"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_HighThresholdMustExceedMedium(t *testing.T) {
	t.Setenv("INTENSITY_MEDIUM_THRESHOLD", "10")
	t.Setenv("INTENSITY_HIGH_THRESHOLD", "10")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTENSITY_HIGH_THRESHOLD")
}

func TestLoad_MapboxWithoutToken(t *testing.T) {
	t.Setenv("GEOCODE_PROVIDER", "mapbox")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CLUSTER_MIN_POINTS=4\nGEOCODE_LANGUAGE=es\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("GEOCODE_LANGUAGE", "en")
	// godotenv writes straight to the process environment.
	t.Cleanup(func() { os.Unsetenv("CLUSTER_MIN_POINTS") }) //nolint:errcheck // test cleanup

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.ClusterMinPoints)
	assert.Equal(t, "en", cfg.GeocodeLanguage, "process environment wins over the env file")
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	_, err := Load()
	require.NoError(t, err)
}
