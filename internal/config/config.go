package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/adapter/points"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Location is the basin's local time zone (Asia/Colombo, UTC+05:30, no DST).
var Location = time.FixedZone("+0530", 5*3600+30*60)

// Config holds all run settings, populated from environment variables.
type Config struct {
	ObsDBPath      string
	ObsCSVDir      string
	ForecastSource string
	NetCDFPath     string
	PointsDir      string
	Model          string
	OutputRoot     string

	BasinShapefile    string
	ThiessenShapefile string
	ThiessenIDField   string
	Stations          []domain.Station

	HistoricalDays int
	ForecastDays   int
	CubeTimeOffset time.Duration

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
	ShutdownTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// DefaultStations is the rain gauge network around the lower Kelani basin.
var DefaultStations = []domain.Station{
	{Name: "Kottawa North Dharmapala School", Lon: 79.95818, Lat: 6.865576, SourceLabel: "Leecom", FallbackKey: "wrf_79.957123_6.859688"},
	{Name: "IBATTARA2", Lon: 79.919, Lat: 6.908, SourceLabel: "CUrW IoT", FallbackKey: "wrf_79.902664_6.913757"},
	{Name: "Malabe", Lon: 79.95738, Lat: 6.90396, SourceLabel: "A&T Labs", FallbackKey: "wrf_79.957123_6.913757"},
	{Name: "Kotikawatta", Lon: 80.802551, Lat: 6.890585, SourceLabel: "Leecom", FallbackKey: "wrf_80.802551_6.890585"},
	{Name: "Mulleriyawa", Lon: 79.941176, Lat: 6.923571, SourceLabel: "A&T Labs", FallbackKey: "wrf_79.929893_6.913757"},
	{Name: "Orugodawatta", Lon: 79.87887, Lat: 6.943741, SourceLabel: "CUrW IoT", FallbackKey: "wrf_79.87887_6.943741"},
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	historical, err := parseDays("HISTORICAL_DAYS", "2", 0)
	if err != nil {
		return nil, err
	}
	forecast, err := parseDays("FORECAST_DAYS", "3", 1)
	if err != nil {
		return nil, err
	}

	offset, err := time.ParseDuration(sharedcfg.EnvOrDefault("CUBE_TIME_OFFSET", domain.DefaultCubeTimeOffset.String()))
	if err != nil {
		return nil, errors.New("invalid CUBE_TIME_OFFSET")
	}

	stations := DefaultStations
	if path := os.Getenv("STATIONS_FILE"); path != "" {
		if stations, err = LoadStations(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ObsDBPath:      sharedcfg.EnvOrDefault("OBS_DB_PATH", "data/observations.db"),
		ObsCSVDir:      os.Getenv("OBS_CSV_DIR"),
		ForecastSource: sharedcfg.EnvOrDefault("FORECAST_SOURCE", "wrf0"),
		NetCDFPath:     sharedcfg.EnvOrDefault("NET_CDF_PATH", "data/wrf0_"),
		PointsDir:      sharedcfg.EnvOrDefault("POINTS_DIR", "data/points"),
		Model:          sharedcfg.EnvOrDefault("FLO2D_MODEL", "250m"),
		OutputRoot:     sharedcfg.EnvOrDefault("OUTPUT_ROOT", "output"),

		BasinShapefile:    os.Getenv("BASIN_SHAPEFILE"),
		ThiessenShapefile: os.Getenv("THIESSEN_SHAPEFILE"),
		ThiessenIDField:   sharedcfg.EnvOrDefault("THIESSEN_ID_FIELD", "id"),
		Stations:          stations,

		HistoricalDays: historical,
		ForecastDays:   forecast,
		CubeTimeOffset: offset,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "raincell-runs"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden after Load.
func (c *Config) Validate() error {
	if _, ok := points.Files[c.Model]; !ok {
		return fmt.Errorf("invalid FLO2D_MODEL %q: must be 150m or 250m", c.Model)
	}
	if c.HistoricalDays < 0 {
		return errors.New("invalid HISTORICAL_DAYS: must be >= 0")
	}
	if c.ForecastDays < 1 {
		return errors.New("invalid FORECAST_DAYS: must be >= 1")
	}
	if c.OutputRoot == "" {
		return errors.New("OUTPUT_ROOT is required")
	}
	if len(c.Stations) == 0 {
		return errors.New("no stations configured")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// NotificationsEnabled reports whether run-completed events are published.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// PointsPath returns the point grid file for the configured model.
func (c *Config) PointsPath() (string, error) {
	return points.PathFor(c.PointsDir, c.Model)
}

// CubePath returns the WRF rainfall file of the run anchored at anchor: the
// 18:00 UTC model run of the previous local day.
func (c *Config) CubePath(anchor time.Time) string {
	day := anchor.In(Location).AddDate(0, 0, -1).Format("2006-01-02")
	return c.NetCDFPath + day + "_18:00_0000/wrf/wrfout_d03_" + day + "_18:00:00_rf"
}

// LoadStations reads a JSON array of stations.
func LoadStations(path string) ([]domain.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	var stations []domain.Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(stations))
	for i, s := range stations {
		if s.Name == "" || s.FallbackKey == "" {
			return nil, fmt.Errorf("stations file %s: entry %d needs name and fallback_key", path, i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("stations file %s: duplicate station %q", path, s.Name)
		}
		seen[s.Name] = true
	}
	return stations, nil
}

func parseDays(key, fallback string, minimum int) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
