package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/couchcryptid/raincell-etl/internal/geometry"
	"github.com/couchcryptid/raincell-etl/internal/observability"
)

// ObservationSource reads raw records of one series over [from, to].
type ObservationSource interface {
	Retrieve(ctx context.Context, d domain.SeriesDescriptor, from, to time.Time) ([]domain.Sample, error)
}

// CubeExtractor reads the forecast cube at path, cropped to bbox.
type CubeExtractor interface {
	Extract(ctx context.Context, path string, bbox domain.BBox) (*domain.ForecastCube, error)
}

// Tessellation maps a location to the station whose region contains it.
type Tessellation = geometry.Locator

// Sink stores a finished RAINCELL series under its run key.
type Sink interface {
	// Exists reports whether output for runKey is already present.
	Exists(runKey string) bool
	// Write stores the series and returns its path. It returns
	// domain.ErrOutputExists if another writer claimed runKey first.
	Write(runKey string, h domain.Header, points []domain.BasinPoint, out domain.OutputSeries) (string, error)
}

// Notifier announces finished runs.
type Notifier interface {
	Notify(ctx context.Context, ev domain.RunCompleted) error
}

// Run is the immutable configuration of one RAINCELL run.
type Run struct {
	Window         domain.RunWindow
	Model          string
	Tag            string
	Points         []domain.BasinPoint
	Stations       []domain.Station
	CubePath       string
	CubeOffset     time.Duration
	ForecastSource string
}

// Key returns the run key naming the output of r.
func (r Run) Key() string {
	return domain.RunKey(r.Window.Anchor, r.Model, r.Tag)
}

// Result summarizes a finished run.
type Result struct {
	RunKey          string
	Path            string
	Header          domain.Header
	Points          int
	Degraded        []string
	Repaired        []string
	// UnknownStations are names the tessellation returned that no configured
	// station carries. Their points get zero observed rainfall.
	UnknownStations []string
	HorizonExceeded int
}

// Pipeline fuses station observations and the forecast cube into a RAINCELL file.
type Pipeline struct {
	source    ObservationSource
	extractor CubeExtractor
	tess      Tessellation
	sink      Sink
	notifier  Notifier
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. notifier may be nil.
func New(source ObservationSource, extractor CubeExtractor, tess Tessellation, sink Sink, notifier Notifier,
	logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		extractor: extractor,
		tess:      tess,
		sink:      sink,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one run. If output for the run key already exists it returns
// an error wrapping domain.ErrOutputExists and leaves the output untouched.
func (p *Pipeline) Run(ctx context.Context, run Run) (Result, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res, err := p.run(ctx, run)
	switch {
	case err == nil:
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	case errors.Is(err, domain.ErrOutputExists):
		p.metrics.Runs.WithLabelValues("skipped").Inc()
		p.logger.Info("output already exists, nothing to do", "run_key", run.Key())
	default:
		p.metrics.Runs.WithLabelValues("failed").Inc()
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, run Run) (Result, error) {
	key := run.Key()
	result := Result{RunKey: key}
	if p.sink.Exists(key) {
		return result, fmt.Errorf("%w: %s", domain.ErrOutputExists, key)
	}
	if len(run.Points) == 0 {
		return result, errors.New("basin point grid is empty")
	}
	points := slices.Clone(run.Points)
	slices.SortFunc(points, func(a, b domain.BasinPoint) int { return cmp.Compare(a.ID, b.ID) })

	p.logger.Info("run started",
		"run_key", key,
		"obs_start", run.Window.ObsStart().Format(domain.TimestampLayout),
		"obs_end", run.Window.ObsEnd().Format(domain.TimestampLayout),
		"forecast_end", run.Window.ForecastEnd().Format(domain.TimestampLayout),
		"points", len(points),
		"stations", len(run.Stations),
	)

	cube, err := p.extractor.Extract(ctx, run.CubePath, geometry.PointBounds(points))
	if err != nil {
		return result, fmt.Errorf("extract forecast cube: %w", err)
	}
	if err := cube.Validate(); err != nil {
		return result, fmt.Errorf("forecast cube %s: %w", run.CubePath, err)
	}
	resMins, err := cube.Resolution()
	if err != nil {
		return result, fmt.Errorf("forecast cube %s: %w", run.CubePath, err)
	}
	if _, err := domain.StepsPerDay(resMins); err != nil {
		return result, err
	}
	seam, err := cube.SeamIndex(run.Window.ObsEnd(), run.CubeOffset)
	if err != nil {
		return result, err
	}

	assignment := geometry.Assign(points, p.tess, cube.Lats, cube.Lons)
	unassigned := geometry.Unassigned(assignment)
	p.metrics.Points.Set(float64(len(points)))
	p.metrics.PointsWithoutStation.Set(float64(unassigned))
	if unassigned > 0 {
		p.logger.Info("points outside every station region get zero observed rainfall", "points", unassigned)
	}

	series, err := p.buildSeries(ctx, run, &result)
	if err != nil {
		return result, err
	}

	result.UnknownStations = unknownStations(assignment, series)
	for _, name := range result.UnknownStations {
		p.logger.Warn("tessellation names an unconfigured station, its points get zero observed rainfall",
			"station", name)
	}

	out, exceeded := Stitch(assignment, series, cube, seam, run.Window, resMins)
	result.HorizonExceeded = exceeded
	p.metrics.HorizonExceededSamples.Add(float64(exceeded))
	if exceeded > 0 {
		p.logger.Warn("forecast horizon exceeds cube, padding with zero",
			"samples", exceeded, "cube_steps", cube.Steps(), "seam", seam)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	header := domain.Header{
		ResolutionMinutes: resMins,
		TotalSteps:        run.Window.TotalSteps(resMins),
		Start:             run.Window.ObsStart(),
		End:               run.Window.ForecastEnd(),
	}
	path, err := p.sink.Write(key, header, points, out)
	if err != nil {
		return result, fmt.Errorf("write raincell %s: %w", key, err)
	}
	result.Path = path
	result.Header = header
	result.Points = len(points)
	p.metrics.RowsWritten.Add(float64(header.TotalSteps * len(points)))

	p.logger.Info("raincell written",
		"run_key", key,
		"path", path,
		"resolution_minutes", resMins,
		"total_steps", header.TotalSteps,
	)

	p.notify(ctx, result)
	return result, nil
}

// unknownStations returns the sorted station names assigned to points that
// have no series.
func unknownStations(assignment domain.Assignment, series map[string]domain.TimeSeries) []string {
	var names []string
	for _, ps := range assignment {
		if !ps.Station.Valid {
			continue
		}
		if _, ok := series[ps.Station.Name]; !ok && !slices.Contains(names, ps.Station.Name) {
			names = append(names, ps.Station.Name)
		}
	}
	slices.Sort(names)
	return names
}

// buildSeries builds every station's hourly series. A fatal series error
// aborts the run.
func (p *Pipeline) buildSeries(ctx context.Context, run Run, result *Result) (map[string]domain.TimeSeries, error) {
	builder := NewBuilder(p.source, run.ForecastSource, p.logger)
	series := make(map[string]domain.TimeSeries, len(run.Stations))
	for _, st := range run.Stations {
		ts, status, err := builder.Build(ctx, st, run.Window)
		if err != nil {
			return nil, err
		}
		p.metrics.Stations.WithLabelValues(string(status)).Inc()
		switch status {
		case SeriesDegraded:
			result.Degraded = append(result.Degraded, st.Name)
		case SeriesRepaired:
			result.Repaired = append(result.Repaired, st.Name)
		}
		series[st.Name] = ts
	}
	return series, nil
}

func (p *Pipeline) notify(ctx context.Context, r Result) {
	if p.notifier == nil {
		return
	}
	ev := domain.RunCompleted{
		RunKey:            r.RunKey,
		Path:              r.Path,
		ResolutionMinutes: r.Header.ResolutionMinutes,
		TotalSteps:        r.Header.TotalSteps,
		Start:             r.Header.Start,
		End:               r.Header.End,
		Points:            r.Points,
		DegradedStations:  r.Degraded,
		RepairedStations:  r.Repaired,
		GeneratedAt:       domain.Now(),
	}
	if err := p.notifier.Notify(ctx, ev); err != nil {
		p.metrics.NotifyErrors.Inc()
		p.logger.Warn("run notification failed", "run_key", r.RunKey, "error", err)
	}
}
