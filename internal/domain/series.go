package domain

import (
	"fmt"
	"sort"
	"time"
)

// AggregateHourly sums raw records into hourly buckets keyed by the hour each
// timestamp truncates to in the anchor's zone. Buckets outside
// [ObsStart, ObsEnd] are dropped. The result is sorted and may be shorter than
// the expected sample count when hours have no records.
func AggregateHourly(records []Sample, w RunWindow) TimeSeries {
	loc := w.Anchor.Location()
	start, end := w.ObsStart(), w.ObsEnd()

	sums := make(map[int64]float64, len(records))
	for _, r := range records {
		h := TruncateHour(r.Time, loc)
		if h.Before(start) || h.After(end) {
			continue
		}
		sums[h.Unix()] += r.Value
	}

	out := make(TimeSeries, 0, len(sums))
	for unix, v := range sums {
		out = append(out, Sample{Time: time.Unix(unix, 0).In(loc), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// ValidateSeries checks that ts holds exactly one sample for every expected
// hour of the window, in order.
func ValidateSeries(ts TimeSeries, w RunWindow) error {
	expected := w.ExpectedHourlySamples()
	if len(ts) != expected {
		return fmt.Errorf("%w: %d samples, expected %d", ErrSeriesValidation, len(ts), expected)
	}
	for i, hour := range w.HourlyTimeline() {
		if !ts[i].Time.Equal(hour) {
			return fmt.Errorf("%w: sample %d at %s, expected %s", ErrSeriesValidation,
				i, ts[i].Time.Format(TimestampLayout), hour.Format(TimestampLayout))
		}
	}
	return nil
}

// RepairSeries fills every expected hour missing from observed with the value
// at the same position of fallback. Hours present in observed keep their
// observed value; samples off the expected timeline are discarded. fallback
// is the raw archived series and must hold exactly one sample per expected
// hour, each on its hour. It is never aggregated.
func RepairSeries(observed, fallback TimeSeries, w RunWindow) (TimeSeries, error) {
	if err := ValidateSeries(fallback, w); err != nil {
		return nil, fmt.Errorf("fallback series: %w", err)
	}
	expected := w.ExpectedHourlySamples()

	byHour := make(map[int64]float64, len(observed))
	for _, s := range observed {
		byHour[s.Time.Unix()] = s.Value
	}

	repaired := make(TimeSeries, 0, expected)
	for j, hour := range w.HourlyTimeline() {
		v, ok := byHour[hour.Unix()]
		if !ok {
			v = fallback[j].Value
		}
		repaired = append(repaired, Sample{Time: hour, Value: v})
	}

	if err := ValidateSeries(repaired, w); err != nil {
		return nil, err
	}
	return repaired, nil
}

// ZeroSeries returns a complete series of zeros for the window. It stands in
// for a station with no observations.
func ZeroSeries(w RunWindow) TimeSeries {
	timeline := w.HourlyTimeline()
	out := make(TimeSeries, len(timeline))
	for i, hour := range timeline {
		out[i] = Sample{Time: hour}
	}
	return out
}
