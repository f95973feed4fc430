package domain

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

// UnknownLocality is reported when a detection cannot be placed in a municipality.
const UnknownLocality = "unknown"

// DefaultGeocodeRetries is the number of automatic retries after a timeout.
const DefaultGeocodeRetries = 1

// GeocodeOutcome classifies how a locality lookup ended.
type GeocodeOutcome string

const (
	OutcomeResolved GeocodeOutcome = "resolved"
	OutcomeEmpty    GeocodeOutcome = "empty"
	OutcomeTimeout  GeocodeOutcome = "timeout"
	OutcomeError    GeocodeOutcome = "error"
	OutcomeDisabled GeocodeOutcome = "disabled"
)

// Resolution is the result of resolving one detection's locality.
type Resolution struct {
	Locality string
	Attempts int
	Outcome  GeocodeOutcome
}

// Resolver turns coordinates into a locality name with bounded retries.
// It never returns an error: every failure degrades to UnknownLocality.
type Resolver struct {
	geocoder   Geocoder
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewResolver creates a Resolver. A nil geocoder disables lookups; a zero
// timeout leaves the deadline to the caller's context.
func NewResolver(geocoder Geocoder, maxRetries int, timeout time.Duration, logger *slog.Logger) *Resolver {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Resolver{
		geocoder:   geocoder,
		maxRetries: maxRetries,
		timeout:    timeout,
		logger:     logger,
	}
}

// Resolve looks up the locality of p. Timeouts are retried up to maxRetries
// times; other errors are not retried.
func (r *Resolver) Resolve(ctx context.Context, p GeoPoint) Resolution {
	if r.geocoder == nil {
		return Resolution{Locality: UnknownLocality, Outcome: OutcomeDisabled}
	}

	for attempt := 1; ; attempt++ {
		addr, err := r.lookup(ctx, p)
		if err == nil {
			if locality := addr.Locality(); locality != "" {
				return Resolution{Locality: locality, Attempts: attempt, Outcome: OutcomeResolved}
			}
			return Resolution{Locality: UnknownLocality, Attempts: attempt, Outcome: OutcomeEmpty}
		}

		if !IsTimeout(err) {
			r.logger.Warn("reverse geocoding failed",
				"lat", p.Lat,
				"lon", p.Lon,
				"attempt", attempt,
				"error", err,
			)
			return Resolution{Locality: UnknownLocality, Attempts: attempt, Outcome: OutcomeError}
		}

		if attempt > r.maxRetries || ctx.Err() != nil {
			r.logger.Warn("reverse geocoding timed out",
				"lat", p.Lat,
				"lon", p.Lon,
				"attempts", attempt,
				"error", err,
			)
			return Resolution{Locality: UnknownLocality, Attempts: attempt, Outcome: OutcomeTimeout}
		}
		r.logger.Debug("retrying reverse geocoding after timeout", "lat", p.Lat, "lon", p.Lon, "attempt", attempt)
	}
}

func (r *Resolver) lookup(ctx context.Context, p GeoPoint) (Address, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.geocoder.ReverseGeocode(ctx, p.Lat, p.Lon)
}

// IsTimeout reports whether err is a timeout worth retrying.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrGeocodeTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
