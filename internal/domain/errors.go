package domain

import "errors"

var (
	// ErrSeriesValidation means an observed or fallback series did not reach the
	// expected hourly sample count after repair. Fatal for the run.
	ErrSeriesValidation = errors.New("series validation failed")

	// ErrAlignment means the forecast cube has no step matching the seam timestamp.
	// Fatal for the run.
	ErrAlignment = errors.New("forecast cube alignment failed")

	// ErrSourceUnavailable means a station returned no observation records for the
	// window. The station degrades to an all-zero historical contribution.
	ErrSourceUnavailable = errors.New("observation source unavailable")

	// ErrForecastHorizonExceeded means a forecast step lies beyond the cube. The
	// sample resolves to 0.0.
	ErrForecastHorizonExceeded = errors.New("forecast horizon exceeded")

	// ErrOutputExists means the run key already has an output directory. The run
	// completes as a no-op.
	ErrOutputExists = errors.New("output already exists for run key")
)
