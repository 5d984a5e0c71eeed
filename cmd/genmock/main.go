// Command genmock generates a self-consistent set of synthetic inputs for a
// local raincell run: the basin point grid, an observation store holding
// station observations and archived fallback forecasts, a WRF rainfall file
// and a basin boundary shapefile. Output is deterministic for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock --out-dir data --date 2018-10-18 --time 09:00:00
//
// and then, with the same data directory:
//
//	OBS_DB_PATH=data/observations.db NET_CDF_PATH=data/wrf0_ POINTS_DIR=data/points \
//	  BASIN_SHAPEFILE=data/basin.shp go run ./cmd/raincell -d 2018-10-18 -t 09:00:00
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/raincell-etl/internal/adapter/points"
	"github.com/couchcryptid/raincell-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/raincell-etl/internal/adapter/wrf"
	"github.com/couchcryptid/raincell-etl/internal/config"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/couchcryptid/raincell-etl/internal/geometry"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/ctessum/geom"
)

// Basin extent of the generated point grid and WRF domain.
var basin = domain.BBox{LonMin: 79.85, LonMax: 80.0, LatMin: 6.85, LatMax: 6.96}

// wrfSpacing approximates the d03 grid of the operational model in degrees.
const wrfSpacing = 0.027

type cli struct {
	OutDir     string  `default:"data" help:"Directory the fixtures are written to."`
	Date       string  `short:"d" required:"" help:"Anchor date (YYYY-MM-DD, local time)."`
	Time       string  `short:"t" default:"09:00:00" help:"Anchor time (HH:MM:SS, local time)."`
	Backward   int     `short:"b" default:"2" help:"Historical days."`
	Forward    int     `short:"f" default:"3" help:"Forecast days."`
	Model      string  `default:"250m" enum:"150m,250m" help:"Point grid to generate."`
	Spacing    float64 `default:"0.01" help:"Point grid spacing in degrees."`
	Resolution int     `default:"15" help:"WRF output interval in minutes."`
	GapStation string  `default:"Malabe" help:"Station whose observations get a three hour gap, repaired from the fallback series."`
	Missing    string  `default:"IBATTARA2" help:"Station with no observations at all."`
	CSV        bool    `help:"Also export every series as CSV for OBS_CSV_DIR."`
	Seed       uint64  `default:"42" help:"Random seed."`
}

func main() {
	var c cli
	kong.Parse(&c, kong.Name("genmock"), kong.Description("Generate synthetic raincell inputs."))
	logger := sharedobs.NewLogger("info", "text")
	if err := run(context.Background(), c, logger); err != nil {
		logger.Error("genmock failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c cli, logger *slog.Logger) error {
	anchor, err := time.ParseInLocation("2006-01-02 15:04:05", c.Date+" "+c.Time, config.Location)
	if err != nil {
		return fmt.Errorf("parse anchor: %w", err)
	}
	w, err := domain.NewRunWindow(anchor, c.Backward, c.Forward)
	if err != nil {
		return err
	}
	if _, err := domain.StepsPerDay(c.Resolution); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))

	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return err
	}

	pts := pointGrid(c.Spacing)
	pointsPath, err := points.PathFor(filepath.Join(c.OutDir, "points"), c.Model)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pointsPath), 0o755); err != nil {
		return err
	}
	if err := points.Write(pointsPath, pts); err != nil {
		return err
	}
	logger.Info("wrote point grid", "path", pointsPath, "points", len(pts))

	series := observations(c, w, rng)
	if err := writeStore(ctx, filepath.Join(c.OutDir, "observations.db"), series, logger); err != nil {
		return err
	}
	if c.CSV {
		if err := writeCSV(filepath.Join(c.OutDir, "csv"), series); err != nil {
			return err
		}
		logger.Info("wrote csv series", "dir", filepath.Join(c.OutDir, "csv"), "series", len(series))
	}

	cube, err := forecastCube(anchor, c.Forward, c.Resolution, rng)
	if err != nil {
		return err
	}
	cfg := &config.Config{NetCDFPath: filepath.Join(c.OutDir, "wrf0_")}
	cubePath := cfg.CubePath(anchor)
	if err := os.MkdirAll(filepath.Dir(cubePath), 0o755); err != nil {
		return err
	}
	if err := wrf.WriteCube(cubePath, cube); err != nil {
		return err
	}
	logger.Info("wrote wrf rainfall file", "path", cubePath, "steps", cube.Steps(),
		"lats", len(cube.Lats), "lons", len(cube.Lons))

	boundary := filepath.Join(c.OutDir, "basin.shp")
	if err := geometry.WriteRegions(boundary, "name", []geometry.Region{{Name: "basin", Polygon: rectangle(basin)}}); err != nil {
		return err
	}
	logger.Info("wrote basin boundary", "path", boundary)
	return nil
}

func pointGrid(spacing float64) []domain.BasinPoint {
	var pts []domain.BasinPoint
	id := 1
	for lat := basin.LatMin; lat <= basin.LatMax+1e-9; lat += spacing {
		for lon := basin.LonMin; lon <= basin.LonMax+1e-9; lon += spacing {
			pts = append(pts, domain.BasinPoint{ID: id, Lon: round(lon, 6), Lat: round(lat, 6)})
			id++
		}
	}
	return pts
}

type namedSeries struct {
	desc    domain.SeriesDescriptor
	samples []domain.Sample
}

// observations returns 15 minute station records over the historical window
// and a complete hourly fallback series for every station.
func observations(c cli, w domain.RunWindow, rng *rand.Rand) []namedSeries {
	var out []namedSeries
	for _, st := range config.DefaultStations {
		fallback := namedSeries{desc: domain.FallbackDescriptor(st, domain.DefaultForecastSource)}
		for _, hour := range w.HourlyTimeline() {
			fallback.samples = append(fallback.samples, domain.Sample{Time: hour, Value: rain(rng, 0.3)})
		}
		out = append(out, fallback)

		if st.Name == c.Missing {
			continue
		}
		obs := namedSeries{desc: domain.ObservedDescriptor(st)}
		gapStart := w.ObsStart().Add(10 * time.Hour)
		for t := w.ObsStart(); !t.After(w.ObsEnd()); t = t.Add(15 * time.Minute) {
			if st.Name == c.GapStation && !t.Before(gapStart) && t.Before(gapStart.Add(3*time.Hour)) {
				continue
			}
			obs.samples = append(obs.samples, domain.Sample{Time: t, Value: rain(rng, 0.25)})
		}
		out = append(out, obs)
	}
	return out
}

func writeStore(ctx context.Context, path string, series []namedSeries, logger *slog.Logger) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.New(db, logger)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	for _, s := range series {
		if err := store.UpsertSeries(ctx, s.desc, s.samples); err != nil {
			return fmt.Errorf("store %s/%s: %w", s.desc.Station, s.desc.Type, err)
		}
	}
	logger.Info("wrote observation store", "path", path, "series", len(series))
	return nil
}

func writeCSV(dir string, series []namedSeries) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, s := range series {
		f, err := os.Create(filepath.Join(dir, s.desc.Station+".csv"))
		if err != nil {
			return err
		}
		cw := csv.NewWriter(f)
		_ = cw.Write([]string{"Time", "Rainfall"})
		for _, smp := range s.samples {
			_ = cw.Write([]string{
				smp.Time.In(config.Location).Format(domain.TimestampLayout),
				strconv.FormatFloat(smp.Value, 'f', 2, 64),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// forecastCube covers the basin from the 18:00 UTC model start of the
// previous local day until the forecast horizon of the run.
func forecastCube(anchor time.Time, forecastDays, res int, rng *rand.Rand) (*domain.ForecastCube, error) {
	day := anchor.In(config.Location).AddDate(0, 0, -1)
	start := time.Date(day.Year(), day.Month(), day.Day(), 18, 0, 0, 0, time.UTC)
	seam := anchor.Add(domain.DefaultCubeTimeOffset)
	if seam.Before(start) {
		return nil, fmt.Errorf("anchor %s precedes the model start %s", anchor, start)
	}
	step := time.Duration(res) * time.Minute
	steps := int(seam.AddDate(0, 0, forecastDays).Sub(start) / step)

	c := &domain.ForecastCube{}
	for lat := basin.LatMin - wrfSpacing; lat <= basin.LatMax+wrfSpacing; lat += wrfSpacing {
		c.Lats = append(c.Lats, round(lat, 6))
	}
	for lon := basin.LonMin - wrfSpacing; lon <= basin.LonMax+wrfSpacing; lon += wrfSpacing {
		c.Lons = append(c.Lons, round(lon, 6))
	}
	for s := 0; s < steps; s++ {
		c.Times = append(c.Times, start.Add(time.Duration(s)*step))
		rows := make([][]float64, len(c.Lats))
		for j := range rows {
			rows[j] = make([]float64, len(c.Lons))
			for i := range rows[j] {
				rows[j][i] = rain(rng, 0.2)
			}
		}
		c.Values = append(c.Values, rows)
	}
	return c, c.Validate()
}

// rain draws a showery amount in mm: dry with probability 1-p, otherwise
// exponentially distributed.
func rain(rng *rand.Rand, p float64) float64 {
	if rng.Float64() >= p {
		return 0
	}
	return round(rng.ExpFloat64()*2, 2)
}

func rectangle(b domain.BBox) geom.Polygon {
	return geom.Polygon{{
		{X: b.LonMin, Y: b.LatMin},
		{X: b.LonMin, Y: b.LatMax},
		{X: b.LonMax, Y: b.LatMax},
		{X: b.LonMax, Y: b.LatMin},
		{X: b.LonMin, Y: b.LatMin},
	}}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
