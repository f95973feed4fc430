package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/cluster"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/geocache"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
)

// ErrRunInProgress is returned by TryRunOnce when another run holds the lock.
var ErrRunInProgress = errors.New("a run is already in progress")

// Source reads the most recent detection batch.
type Source interface {
	FetchLatestBatch(ctx context.Context) (domain.Batch, error)
}

// Loader writes the assembled region records somewhere.
type Loader interface {
	Load(ctx context.Context, records []domain.RegionRecord) error
}

// Pinger is implemented by loaders that hold a connection worth checking
// before the service reports ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sink is a named Loader. Target is a path or address used in reports and logs.
type Sink struct {
	Name   string
	Target string
	Loader Loader
}

// Options tunes clustering, classification and geocoding for each run.
type Options struct {
	Cluster    cluster.Params
	Thresholds domain.Thresholds

	// Geocoder may be nil, in which case every point resolves to "unknown".
	Geocoder          domain.Geocoder
	GeocodeMaxRetries int
	GeocodeTimeout    time.Duration
	GeocodeWorkers    int
	GeocodeCacheSize  int

	RejectEmptyBatch bool
	// BatchTimeout bounds fetch plus geocoding. Zero disables it.
	BatchTimeout time.Duration
}

// DefaultOptions returns the clustering and classification defaults with
// geocoding disabled.
func DefaultOptions() Options {
	return Options{
		Cluster:           cluster.DefaultParams(),
		Thresholds:        domain.DefaultThresholds(),
		GeocodeMaxRetries: domain.DefaultGeocodeRetries,
		GeocodeTimeout:    10 * time.Second,
		GeocodeWorkers:    4,
	}
}

// Report summarizes one run.
type Report struct {
	RunID           string         `json:"runId"`
	Source          string         `json:"source,omitempty"`
	StartedAt       time.Time      `json:"startedAt"`
	Rows            int            `json:"rows"`
	Malformed       int            `json:"malformed"`
	Points          int            `json:"points"`
	Clusters        int            `json:"clusters"`
	Noise           int            `json:"noise"`
	Intensity       map[string]int `json:"intensity"`
	Unknown         int            `json:"unknownLocalities"`
	GeocodeAttempts int            `json:"geocodeAttempts"`
	OutputPath      string         `json:"outputPath,omitempty"`
	EgressFailures  []string       `json:"egressFailures,omitempty"`
	Duration        time.Duration  `json:"durationNs"`
	Error           string         `json:"error,omitempty"`

	Records []domain.RegionRecord `json:"-"`
}

func (r *Report) logAttrs() []any {
	return []any{
		"run_id", r.RunID,
		"source", r.Source,
		"rows", r.Rows,
		"malformed", r.Malformed,
		"points", r.Points,
		"clusters", r.Clusters,
		"noise", r.Noise,
		"low", r.Intensity[string(domain.IntensityLow)],
		"medium", r.Intensity[string(domain.IntensityMedium)],
		"high", r.Intensity[string(domain.IntensityHigh)],
		"unknown", r.Unknown,
		"geocode_attempts", r.GeocodeAttempts,
		"egress_failures", len(r.EgressFailures),
		"duration", r.Duration,
	}
}

// Pipeline runs fetch, cluster, classify, geocode and load for one batch at a time.
type Pipeline struct {
	source    Source
	primary   Sink
	secondary []Sink
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex
	ready atomic.Bool
	last  atomic.Pointer[Report]
}

// New creates a Pipeline. The primary sink must succeed for a run to count;
// secondary sink failures are logged and reported.
func New(source Source, primary Sink, secondary []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.GeocodeWorkers < 1 {
		opts.GeocodeWorkers = 1
	}
	return &Pipeline{
		source:    source,
		primary:   primary,
		secondary: secondary,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed successfully
// and every sink whose loader is a Pinger answers.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	for _, s := range append([]Sink{p.primary}, p.secondary...) {
		pinger, ok := s.Loader.(Pinger)
		if !ok {
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("sink %s: %w", s.Name, err)
		}
	}
	return nil
}

// LastReport returns the report of the most recent run, or nil.
func (p *Pipeline) LastReport() *Report {
	return p.last.Load()
}

// RunOnce processes the latest batch, waiting for any run already in progress.
func (p *Pipeline) RunOnce(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run(ctx)
}

// TryRunOnce is RunOnce that returns ErrRunInProgress instead of waiting.
func (p *Pipeline) TryRunOnce(ctx context.Context) (*Report, error) {
	if !p.mu.TryLock() {
		p.metrics.Runs.WithLabelValues("skipped").Inc()
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()
	return p.run(ctx)
}

func (p *Pipeline) run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
		Intensity: map[string]int{
			string(domain.IntensityLow):    0,
			string(domain.IntensityMedium): 0,
			string(domain.IntensityHigh):   0,
		},
	}
	logger := p.logger.With("run_id", report.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.process(ctx, logger, report)
	report.Duration = domain.Now().Sub(report.StartedAt)
	p.metrics.RunDuration.Observe(report.Duration.Seconds())
	if err != nil {
		report.Error = err.Error()
	}
	// The report is read concurrently through LastReport once stored, so it
	// must not be mutated after this point.
	p.last.Store(report)

	if err != nil {
		p.metrics.Runs.WithLabelValues("failure").Inc()
		logger.Error("run failed", append(report.logAttrs(), "error", err)...)
		return report, err
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.SetToCurrentTime()
	p.ready.Store(true)
	logger.Info("run completed", report.logAttrs()...)
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, report *Report) error {
	workCtx := ctx
	if p.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, p.opts.BatchTimeout)
		defer cancel()
	}

	batch, err := p.source.FetchLatestBatch(workCtx)
	if err != nil {
		return fmt.Errorf("fetch batch: %w", err)
	}
	report.Source = batch.Source
	report.Rows = len(batch.Rows)
	p.metrics.RowsRead.Add(float64(len(batch.Rows)))

	records, malformed := domain.BuildRecords(batch.Rows)
	report.Malformed = len(malformed)
	p.metrics.MalformedRows.Add(float64(len(malformed)))
	for _, m := range malformed {
		logger.Warn("skipping malformed row", "source", batch.Source, "line", m.Line, "error", m)
	}

	if len(records) == 0 && p.opts.RejectEmptyBatch {
		return fmt.Errorf("batch %s: %w", batch.Source, domain.ErrEmptyBatch)
	}

	points := domain.Points(records)
	clusters := cluster.DBSCAN(points, p.opts.Cluster)
	classes := p.opts.Thresholds.ClassifyPoints(clusters, len(records))
	for _, c := range clusters {
		if c.IsNoise() {
			report.Noise = c.Size()
			continue
		}
		report.Clusters++
	}
	p.metrics.Clusters.Add(float64(report.Clusters))

	localities := p.resolveLocalities(workCtx, logger, points, report)

	out, err := domain.Assemble(records, classes, localities, domain.BatchTimestamp(batch))
	if err != nil {
		return err
	}
	report.Points = len(out)
	report.Records = out
	for _, r := range out {
		report.Intensity[string(r.Intensity)]++
		p.metrics.PointsByIntensity.WithLabelValues(string(r.Intensity)).Inc()
	}

	// Sinks run on the caller's context so an exhausted batch budget
	// cannot prevent the file from being written.
	if err := p.primary.Loader.Load(ctx, out); err != nil {
		p.metrics.EgressFailures.WithLabelValues(p.primary.Name).Inc()
		return fmt.Errorf("write %s %s: %w", p.primary.Name, p.primary.Target, err)
	}
	report.OutputPath = p.primary.Target

	for _, s := range p.secondary {
		if err := s.Loader.Load(ctx, out); err != nil {
			egressErr := &domain.EgressError{Sink: s.Name, Err: err}
			p.metrics.EgressFailures.WithLabelValues(s.Name).Inc()
			report.EgressFailures = append(report.EgressFailures, egressErr.Error())
			logger.Warn("secondary sink failed", "sink", s.Name, "target", s.Target, "error", egressErr)
		}
	}
	return nil
}

// resolveLocalities geocodes every point on a bounded worker pool. Results are
// written by index so output order matches input order.
func (p *Pipeline) resolveLocalities(ctx context.Context, logger *slog.Logger, points []domain.GeoPoint, report *Report) []string {
	localities := make([]string, len(points))
	if len(points) == 0 {
		return localities
	}

	var geocoder domain.Geocoder
	var cached *geocache.Geocoder
	if p.opts.Geocoder != nil {
		cached = geocache.New(p.opts.Geocoder, p.opts.GeocodeCacheSize, p.metrics)
		geocoder = cached
	}
	resolver := domain.NewResolver(geocoder, p.opts.GeocodeMaxRetries, p.opts.GeocodeTimeout, logger)

	resolutions := make([]domain.Resolution, len(points))
	var g errgroup.Group
	g.SetLimit(p.opts.GeocodeWorkers)
	for i, pt := range points {
		g.Go(func() error {
			resolutions[i] = resolver.Resolve(ctx, pt)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range resolutions {
		localities[i] = res.Locality
		report.GeocodeAttempts += res.Attempts
		if res.Locality == domain.UnknownLocality {
			report.Unknown++
		}
		p.metrics.GeocodeRequests.WithLabelValues(string(res.Outcome)).Inc()
	}
	p.metrics.GeocodeAttempts.Add(float64(report.GeocodeAttempts))
	if cached != nil {
		logger.Debug("geocoding finished", "points", len(points), "cache_entries", cached.Len())
	}
	return localities
}
