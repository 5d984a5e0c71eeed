package domain

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// TimestampLayout is the timestamp format of RAINCELL headers and store rows.
const TimestampLayout = "2006-01-02 15:04:05"

// RunWindow is the historical window and forecast horizon around an anchor.
type RunWindow struct {
	HistoricalDays int
	ForecastDays   int
	Anchor         time.Time
}

// NewRunWindow validates and returns a window. The anchor must be on the hour.
func NewRunWindow(anchor time.Time, historicalDays, forecastDays int) (RunWindow, error) {
	if historicalDays < 0 {
		return RunWindow{}, fmt.Errorf("invalid window: negative historical days %d", historicalDays)
	}
	// The forecast segment omits the seam sample, so at least one forecast day
	// is needed for the row count to match the header.
	if forecastDays < 1 {
		return RunWindow{}, errors.New("invalid window: forecast days must be at least 1")
	}
	if !TruncateHour(anchor, anchor.Location()).Equal(anchor) {
		return RunWindow{}, fmt.Errorf("invalid window: anchor %s is not on the hour", anchor.Format(TimestampLayout))
	}
	return RunWindow{HistoricalDays: historicalDays, ForecastDays: forecastDays, Anchor: anchor}, nil
}

func (w RunWindow) ObsStart() time.Time {
	return w.Anchor.AddDate(0, 0, -w.HistoricalDays)
}

func (w RunWindow) ObsEnd() time.Time {
	return w.Anchor
}

func (w RunWindow) ForecastEnd() time.Time {
	return w.Anchor.AddDate(0, 0, w.ForecastDays)
}

// ExpectedHourlySamples is the sample count of a complete observed series,
// both window ends inclusive.
func (w RunWindow) ExpectedHourlySamples() int {
	return w.HistoricalDays*24 + 1
}

// HourlyTimeline returns every expected hour from ObsStart to ObsEnd inclusive.
func (w RunWindow) HourlyTimeline() []time.Time {
	n := w.ExpectedHourlySamples()
	start := w.ObsStart()
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// StepsPerDay returns the number of steps per day at res minutes. res must be
// positive and divide a day evenly.
func StepsPerDay(res int) (int, error) {
	if res <= 0 || minutesPerDay%res != 0 {
		return 0, fmt.Errorf("invalid resolution: %d minutes does not divide a day", res)
	}
	return minutesPerDay / res, nil
}

// HistoricalSteps is the historical segment length at res minutes, including
// the leading boundary sample.
func (w RunWindow) HistoricalSteps(res int) int {
	return w.HistoricalDays*minutesPerDay/res + 1
}

// ForecastSteps is the forecast segment length at res minutes. It excludes the
// seam sample already emitted by the historical segment.
func (w RunWindow) ForecastSteps(res int) int {
	return w.ForecastDays*minutesPerDay/res - 1
}

// TotalSteps is the header step count at res minutes.
func (w RunWindow) TotalSteps(res int) int {
	return (w.HistoricalDays + w.ForecastDays) * minutesPerDay / res
}

// TruncateHour drops minutes and below of t as observed in loc. Unlike
// time.Truncate it respects zones with a half-hour offset.
func TruncateHour(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// RunKey names the output directory of a run: <date>_<time>_<model>, plus
// _<tag> when tag is set. It is the idempotence boundary.
func RunKey(anchor time.Time, model, tag string) string {
	key := anchor.Format("2006-01-02_15:04:05") + "_" + model
	if tag != "" {
		key += "_" + tag
	}
	return key
}
