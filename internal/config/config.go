package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Geocoding providers.
const (
	ProviderNominatim = "nominatim"
	ProviderMapbox    = "mapbox"
	ProviderNone      = "none"
)

// Empty batch policies.
const (
	EmptyBatchAllow  = "allow"
	EmptyBatchReject = "reject"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceDir      string
	SourceEndpoint string
	SourceTimeout  time.Duration

	OutputPath        string
	GeoJSONOutputPath string
	EgressEndpoint    string
	EgressTimeout     time.Duration
	EgressMaxRetries  int
	KafkaBrokers      []string
	KafkaSinkTopic    string
	SQLitePath        string

	// Reverse geocoding.
	GeocodeProvider   string
	GeocodeEndpoint   string
	GeocodeLanguage   string
	GeocodeUserAgent  string
	GeocodeTimeout    time.Duration
	GeocodeMaxRetries int
	GeocodeWorkers    int
	GeocodeRateLimit  float64
	GeocodeCacheSize  int
	MapboxToken       string

	// Clustering and classification.
	ClusterEpsKm             float64
	ClusterMinPoints         int
	IntensityMediumThreshold int
	IntensityHighThreshold   int
	EmptyBatchPolicy         string

	RunInterval     time.Duration
	BatchTimeout    time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables in the file named by ENV_FILE (default .env) are loaded first without
// overriding the process environment.
func Load() (*Config, error) {
	if err := loadEnvFile(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SourceDir:         sharedcfg.EnvOrDefault("SOURCE_DIR", "./data/hotspots"),
		SourceEndpoint:    os.Getenv("SOURCE_ENDPOINT"),
		OutputPath:        sharedcfg.EnvOrDefault("OUTPUT_PATH", "./data/hotspots/regions.json"),
		GeoJSONOutputPath: os.Getenv("GEOJSON_OUTPUT_PATH"),
		EgressEndpoint:    os.Getenv("EGRESS_ENDPOINT"),
		KafkaSinkTopic:    sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hotspot-regions"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		GeocodeProvider:   strings.ToLower(sharedcfg.EnvOrDefault("GEOCODE_PROVIDER", ProviderNominatim)),
		GeocodeEndpoint:   sharedcfg.EnvOrDefault("GEOCODE_ENDPOINT", "https://nominatim.openstreetmap.org"),
		GeocodeLanguage:   sharedcfg.EnvOrDefault("GEOCODE_LANGUAGE", "pt-BR"),
		GeocodeUserAgent:  sharedcfg.EnvOrDefault("GEOCODE_USER_AGENT", "wildfire-hotspot-etl"),
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),
		EmptyBatchPolicy:  strings.ToLower(sharedcfg.EnvOrDefault("EMPTY_BATCH_POLICY", EmptyBatchAllow)),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	durations := []struct {
		key       string
		fallback  string
		allowZero bool
		dst       *time.Duration
	}{
		{"SOURCE_TIMEOUT", "30s", false, &cfg.SourceTimeout},
		{"EGRESS_TIMEOUT", "10s", false, &cfg.EgressTimeout},
		{"GEOCODE_TIMEOUT", "10s", false, &cfg.GeocodeTimeout},
		{"RUN_INTERVAL", "10m", false, &cfg.RunInterval},
		{"BATCH_TIMEOUT", "0s", true, &cfg.BatchTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.fallback, d.allowZero); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key      string
		fallback int
		min      int
		dst      *int
	}{
		{"EGRESS_MAX_RETRIES", 2, 0, &cfg.EgressMaxRetries},
		{"GEOCODE_MAX_RETRIES", 1, 0, &cfg.GeocodeMaxRetries},
		{"GEOCODE_WORKERS", 4, 1, &cfg.GeocodeWorkers},
		{"GEOCODE_CACHE_SIZE", 1000, 0, &cfg.GeocodeCacheSize},
		{"CLUSTER_MIN_POINTS", 2, 1, &cfg.ClusterMinPoints},
		{"INTENSITY_MEDIUM_THRESHOLD", 3, 1, &cfg.IntensityMediumThreshold},
		{"INTENSITY_HIGH_THRESHOLD", 10, 2, &cfg.IntensityHighThreshold},
	}
	for _, i := range ints {
		if *i.dst, err = parseInt(i.key, i.fallback, i.min); err != nil {
			return nil, err
		}
	}

	if cfg.GeocodeRateLimit, err = parseFloat("GEOCODE_RATE_LIMIT", 1, true); err != nil {
		return nil, err
	}
	if cfg.ClusterEpsKm, err = parseFloat("CLUSTER_EPS_KM", 10, false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceDir == "" && c.SourceEndpoint == "" {
		return errors.New("SOURCE_DIR or SOURCE_ENDPOINT is required")
	}
	if c.OutputPath == "" {
		return errors.New("OUTPUT_PATH is required")
	}
	if c.IntensityHighThreshold <= c.IntensityMediumThreshold {
		return errors.New("invalid INTENSITY_HIGH_THRESHOLD: must be greater than INTENSITY_MEDIUM_THRESHOLD")
	}
	switch c.GeocodeProvider {
	case ProviderNominatim, ProviderNone:
	case ProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODE_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid GEOCODE_PROVIDER %q: must be nominatim, mapbox or none", c.GeocodeProvider)
	}
	switch c.EmptyBatchPolicy {
	case EmptyBatchAllow, EmptyBatchReject:
	default:
		return fmt.Errorf("invalid EMPTY_BATCH_POLICY %q: must be allow or reject", c.EmptyBatchPolicy)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// RejectEmptyBatch reports whether a batch with no usable rows fails the run.
func (c *Config) RejectEmptyBatch() bool {
	return c.EmptyBatchPolicy == EmptyBatchReject
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseFloat(key string, fallback float64, allowZero bool) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || (f == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}
