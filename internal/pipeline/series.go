package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// SeriesStatus describes how a station's hourly series was obtained.
type SeriesStatus string

const (
	SeriesComplete SeriesStatus = "complete"
	SeriesRepaired SeriesStatus = "repaired"
	SeriesDegraded SeriesStatus = "degraded"
)

// Builder produces the validated hourly observation series of a station.
type Builder struct {
	source         ObservationSource
	forecastSource string
	logger         *slog.Logger
}

// NewBuilder creates a Builder. forecastSource names the producer of the
// fallback series; empty means domain.DefaultForecastSource.
func NewBuilder(source ObservationSource, forecastSource string, logger *slog.Logger) *Builder {
	if forecastSource == "" {
		forecastSource = domain.DefaultForecastSource
	}
	return &Builder{source: source, forecastSource: forecastSource, logger: logger}
}

// Build returns exactly w.ExpectedHourlySamples() hourly values for the
// station over [ObsStart, ObsEnd].
//
// A station with no records, or whose retrieval fails, degrades to zeros and
// is reported as SeriesDegraded. A station with missing hours is repaired from
// its fallback series; a fallback that cannot be retrieved or is the wrong
// length or off the hourly timeline fails the whole run with
// domain.ErrSeriesValidation.
func (b *Builder) Build(ctx context.Context, st domain.Station, w domain.RunWindow) (domain.TimeSeries, SeriesStatus, error) {
	records, err := b.source.Retrieve(ctx, domain.ObservedDescriptor(st), w.ObsStart(), w.ObsEnd())
	if err != nil && ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	if err == nil && len(records) == 0 {
		err = domain.ErrSourceUnavailable
	}
	if err != nil {
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		b.logger.Warn("station degraded to zero rainfall", "station", st.Name, "error", err)
		return domain.ZeroSeries(w), SeriesDegraded, nil
	}

	hourly := domain.AggregateHourly(records, w)
	if len(hourly) == w.ExpectedHourlySamples() {
		return hourly, SeriesComplete, nil
	}

	b.logger.Info("repairing observation series",
		"station", st.Name,
		"samples", len(hourly),
		"expected", w.ExpectedHourlySamples(),
	)

	fallback, err := b.source.Retrieve(ctx, domain.FallbackDescriptor(st, b.forecastSource), w.ObsStart(), w.ObsEnd())
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("%w: fallback series for station %s: %w", domain.ErrSeriesValidation, st.Name, err)
	}

	repaired, err := domain.RepairSeries(hourly, domain.TimeSeries(fallback), w)
	if err != nil {
		return nil, "", fmt.Errorf("station %s: %w", st.Name, err)
	}
	return repaired, SeriesRepaired, nil
}
