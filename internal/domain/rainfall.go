package domain

import "time"

// Descriptor values used by the CUrW observation database.
const (
	VariablePrecipitation = "Precipitation"
	UnitMillimetres       = "mm"
	TypeObserved          = "Observed"
	TypeForecastSnapshot  = "Forecast-0-d"
	SourceWeatherStation  = "WeatherStation"
	DefaultForecastSource = "wrf0"
)

// BasinPoint is one node of the FLO-2D grid over the watershed.
type BasinPoint struct {
	ID  int
	Lon float64
	Lat float64
}

// Station is an observation station and the key of its archived zero-hour
// forecast series.
type Station struct {
	Name        string  `json:"name"`
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	SourceLabel string  `json:"source_label"` // data provider, e.g. "Leecom", "A&T Labs"
	FallbackKey string  `json:"fallback_key"` // e.g. "wrf_79.957123_6.859688"
}

// SeriesDescriptor identifies one time series in the observation store.
type SeriesDescriptor struct {
	Station  string
	Variable string
	Unit     string
	Type     string
	Source   string
	Name     string
}

// ObservedDescriptor returns the descriptor of a station's observed rainfall.
func ObservedDescriptor(s Station) SeriesDescriptor {
	return SeriesDescriptor{
		Station:  s.Name,
		Variable: VariablePrecipitation,
		Unit:     UnitMillimetres,
		Type:     TypeObserved,
		Source:   SourceWeatherStation,
		Name:     s.SourceLabel,
	}
}

// FallbackDescriptor returns the descriptor of a station's archived zero-hour
// forecast series produced by forecastSource.
func FallbackDescriptor(s Station, forecastSource string) SeriesDescriptor {
	if forecastSource == "" {
		forecastSource = DefaultForecastSource
	}
	return SeriesDescriptor{
		Station:  s.FallbackKey,
		Variable: VariablePrecipitation,
		Unit:     UnitMillimetres,
		Type:     TypeForecastSnapshot,
		Source:   forecastSource,
	}
}

// Sample is one (timestamp, value) pair.
type Sample struct {
	Time  time.Time
	Value float64
}

// TimeSeries is an ordered sequence of samples with strictly increasing time.
type TimeSeries []Sample

// Values returns the sample values in order.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts))
	for i, s := range ts {
		out[i] = s.Value
	}
	return out
}

// GridCell locates a forecast cube cell by bin index.
type GridCell struct {
	LonBin int
	LatBin int
}

// StationRef names the station whose Thiessen polygon encloses a point.
// Valid is false when no polygon encloses it.
type StationRef struct {
	Name  string
	Valid bool
}

// PointSource is the data-source assignment of one basin point.
type PointSource struct {
	Station StationRef
	Cell    GridCell
}

// Assignment maps each basin point, by position in the sorted point slice, to
// its data sources. Read-only once built.
type Assignment []PointSource

// OutputSeries holds Values[point][step] in the sorted point order.
type OutputSeries struct {
	Values [][]float64
}

// Steps returns the number of steps per point, or 0 for an empty series.
func (o OutputSeries) Steps() int {
	if len(o.Values) == 0 {
		return 0
	}
	return len(o.Values[0])
}

// Header is the first line of a RAINCELL file.
type Header struct {
	ResolutionMinutes int
	TotalSteps        int
	Start             time.Time
	End               time.Time
}

// RunCompleted announces a finished RAINCELL file to downstream consumers.
type RunCompleted struct {
	RunKey            string    `json:"run_key"`
	Path              string    `json:"path"`
	ResolutionMinutes int       `json:"resolution_minutes"`
	TotalSteps        int       `json:"total_steps"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Points            int       `json:"points"`
	DegradedStations  []string  `json:"degraded_stations,omitempty"`
	RepairedStations  []string  `json:"repaired_stations,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`
}
