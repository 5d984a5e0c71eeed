package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/raincell-etl/internal/adapter/csvobs"
	kafkaadapter "github.com/couchcryptid/raincell-etl/internal/adapter/kafka"
	"github.com/couchcryptid/raincell-etl/internal/adapter/points"
	"github.com/couchcryptid/raincell-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/raincell-etl/internal/adapter/wrf"
	"github.com/couchcryptid/raincell-etl/internal/config"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/couchcryptid/raincell-etl/internal/geometry"
	"github.com/couchcryptid/raincell-etl/internal/observability"
	"github.com/couchcryptid/raincell-etl/internal/pipeline"
	"github.com/couchcryptid/raincell-etl/internal/raincell"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// CLI holds the run parameters. Flags override the environment.
type CLI struct {
	Date       string `short:"d" help:"Anchor date (YYYY-MM-DD, local time). Defaults to today." placeholder:"YYYY-MM-DD"`
	Time       string `short:"t" help:"Anchor time (HH:MM:SS, local time). Defaults to the current hour." placeholder:"HH:MM:SS"`
	Backward   int    `short:"b" default:"-1" help:"Historical days (HISTORICAL_DAYS)."`
	Forward    int    `short:"f" default:"-1" help:"Forecast days (FORECAST_DAYS)."`
	Tag        string `short:"T" help:"Tag appended to the run key."`
	WRFRF      string `name:"wrf-rf" help:"WRF rainfall file. Derived from the anchor date when empty."`
	Model      string `help:"FLO-2D model resolution, 150m or 250m (FLO2D_MODEL)."`
	OutputRoot string `name:"output-root" help:"Output directory root (OUTPUT_ROOT)."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("raincell"),
		kong.Description("Generate a FLO-2D RAINCELL.DAT from station observations and a WRF forecast."),
		kong.UsageOnError(),
	)
	os.Exit(run(cli))
}

func run(cli CLI) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid run parameters", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	defer func() {
		if cfg.MetricsTextfile == "" {
			return
		}
		if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("metrics export failed", "error", err)
		}
	}()

	anchor, err := cli.anchor()
	if err != nil {
		logger.Error("invalid anchor", "error", err)
		return 1
	}
	window, err := domain.NewRunWindow(anchor, cfg.HistoricalDays, cfg.ForecastDays)
	if err != nil {
		logger.Error("invalid run window", "error", err)
		return 1
	}

	pointsPath, err := cfg.PointsPath()
	if err != nil {
		logger.Error("invalid model", "error", err)
		return 1
	}
	pts, err := points.Load(pointsPath)
	if err != nil {
		logger.Error("failed to load basin points", "error", err)
		return 1
	}

	tess, err := loadTessellation(cfg, logger)
	if err != nil {
		logger.Error("failed to build station tessellation", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open observation source", "error", err)
		return 1
	}
	defer closeSource()

	var notifier pipeline.Notifier
	if cfg.NotificationsEnabled() {
		n := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ShutdownTimeout, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = n
	}

	cubePath := cli.WRFRF
	if cubePath == "" {
		cubePath = cfg.CubePath(anchor)
	}

	p := pipeline.New(source, wrf.NewExtractor(logger), tess, raincell.NewWriter(cfg.OutputRoot), notifier, logger, metrics)
	res, err := p.Run(ctx, pipeline.Run{
		Window:         window,
		Model:          cfg.Model,
		Tag:            cli.Tag,
		Points:         pts,
		Stations:       cfg.Stations,
		CubePath:       cubePath,
		CubeOffset:     cfg.CubeTimeOffset,
		ForecastSource: cfg.ForecastSource,
	})
	switch {
	case errors.Is(err, domain.ErrOutputExists):
		return 0
	case err != nil:
		logger.Error("raincell run failed", "run_key", res.RunKey, "error", err)
		return 1
	}

	logger.Info("raincell run complete",
		"run_key", res.RunKey,
		"path", res.Path,
		"points", res.Points,
		"degraded", len(res.Degraded),
		"repaired", len(res.Repaired),
	)
	return 0
}

func (c *CLI) apply(cfg *config.Config) {
	if c.Backward >= 0 {
		cfg.HistoricalDays = c.Backward
	}
	if c.Forward >= 0 {
		cfg.ForecastDays = c.Forward
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.OutputRoot != "" {
		cfg.OutputRoot = c.OutputRoot
	}
}

// anchor combines --date and --time in the basin's zone, defaulting to the
// current hour.
func (c *CLI) anchor() (time.Time, error) {
	now := domain.CurrentHour(config.Location)
	date, clock := now.Format("2006-01-02"), now.Format("15:04:05")
	if c.Date != "" {
		date = c.Date
	}
	if c.Time != "" {
		clock = c.Time
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, config.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse anchor %q %q: %w", date, clock, err)
	}
	return t, nil
}

func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.ObservationSource, func(), error) {
	if cfg.ObsCSVDir != "" {
		logger.Info("reading observations from csv", "dir", cfg.ObsCSVDir)
		return csvobs.New(cfg.ObsCSVDir, config.Location), func() {}, nil
	}

	db, err := sqlite.Open(cfg.ObsDBPath)
	if err != nil {
		return nil, nil, err
	}
	store := sqlite.New(db, logger)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logger.Info("reading observations from sqlite", "path", cfg.ObsDBPath)
	return store, func() {
		if err := db.Close(); err != nil {
			logger.Error("observation db close error", "error", err)
		}
	}, nil
}

// loadTessellation prefers pre-built Thiessen polygons and otherwise derives
// the partition from station coordinates, clipped to the basin when a
// boundary is configured.
func loadTessellation(cfg *config.Config, logger *slog.Logger) (pipeline.Tessellation, error) {
	if cfg.ThiessenShapefile != "" {
		logger.Info("using thiessen shapefile", "path", cfg.ThiessenShapefile, "id_field", cfg.ThiessenIDField)
		return geometry.LoadShapefileTessellation(cfg.ThiessenShapefile, cfg.ThiessenIDField)
	}

	var boundary []geometry.Region
	if cfg.BasinShapefile != "" {
		var err error
		if boundary, err = geometry.ReadRegions(cfg.BasinShapefile, ""); err != nil {
			return nil, err
		}
	}
	logger.Info("using voronoi tessellation", "stations", len(cfg.Stations), "clipped", len(boundary) > 0)
	return geometry.NewVoronoiTessellation(cfg.Stations, boundary)
}
