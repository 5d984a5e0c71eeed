// Package domain models the rainfall fusion engine that produces RAINCELL
// boundary-condition files for the FLO-2D flood model.
//
// # Data Sources
//
// Two rainfall sources are fused into one series per basin point:
//
//   - Observed rainfall from automatic weather stations, stored as irregular
//     (timestamp, value) records in millimetres. Stations report at their own
//     cadence (5, 10 or 15 minutes are common), so raw records are summed into
//     hourly buckets before use.
//   - Forecast rainfall from the WRF model ("wrf0" run). The model output file
//     holds cumulative convective (RAINC) and non-convective (RAINNC) rainfall
//     on a lat/lon grid; the extractor converts it into per-step increments.
//
// A third series, the zero-hour WRF forecast archived per station
// ("Forecast-0-d"), is the ground-truth proxy used to fill hours a station
// failed to report.
//
// # Time Conventions
//
// Run anchors are local Sri Lanka time (UTC+05:30) and must fall on the hour.
// WRF step labels are UTC. The seam between the observed and forecast segments
// is located by shifting the zoned anchor by a fixed offset (default -30m, the
// model's reporting shift) and matching the cube label exactly. Written as
// naive wall-clock times that is local minus six hours. There is no tolerance
// window.
//
// Window arithmetic:
//
//	ObsStart    = Anchor - HistoricalDays
//	ObsEnd      = Anchor
//	ForecastEnd = Anchor + ForecastDays
//
// # Output Layout
//
// The RAINCELL file is step-major. For a resolution of r minutes the historical
// segment holds HistoricalDays*1440/r + 1 steps (the +1 is the leading boundary
// sample at ObsStart) and the forecast segment ForecastDays*1440/r - 1 steps,
// so the total equals the header value (HistoricalDays+ForecastDays)*1440/r.
//
// # Failure Semantics
//
// Errors that would leave unexplained gaps in flood model input abort the run
// ([ErrSeriesValidation], [ErrAlignment]). Errors that affect one station or one
// sample degrade locally ([ErrSourceUnavailable], [ErrForecastHorizonExceeded]).
// An existing output directory for the run key makes the run a no-op
// ([ErrOutputExists]).
package domain
