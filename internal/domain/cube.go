package domain

import (
	"errors"
	"fmt"
	"time"
)

// WRFTimeLayout is the layout of WRF "Times" labels, e.g. 2018-10-18_03:00:00.
const WRFTimeLayout = "2006-01-02_15:04:05"

// DefaultCubeTimeOffset shifts the anchor onto the WRF step label that starts
// the forecast segment. Anchors carry their zone, so only the model's 30 minute
// reporting shift remains; on naive wall clocks it reads as local minus 6h.
const DefaultCubeTimeOffset = -30 * time.Minute

// BBox is a lon/lat bounding box.
type BBox struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

// ForecastCube is gridded forecast rainfall indexed [step][latBin][lonBin].
// Times holds the UTC label of each step; Lats and Lons the cell centers.
type ForecastCube struct {
	Values [][][]float64
	Times  []time.Time
	Lats   []float64
	Lons   []float64
}

// Validate checks that the cube dimensions agree with each other.
func (c *ForecastCube) Validate() error {
	if len(c.Values) != len(c.Times) {
		return fmt.Errorf("cube has %d steps but %d time labels", len(c.Values), len(c.Times))
	}
	if len(c.Lats) == 0 || len(c.Lons) == 0 {
		return errors.New("cube has an empty lat or lon axis")
	}
	for i, step := range c.Values {
		if len(step) != len(c.Lats) {
			return fmt.Errorf("cube step %d has %d rows, expected %d", i, len(step), len(c.Lats))
		}
		for j, row := range step {
			if len(row) != len(c.Lons) {
				return fmt.Errorf("cube step %d row %d has %d columns, expected %d", i, j, len(row), len(c.Lons))
			}
		}
	}
	return nil
}

// Steps returns the number of forecast steps in the cube.
func (c *ForecastCube) Steps() int {
	return len(c.Values)
}

// Sample returns the rainfall of one cell at one step. Steps past the cube
// return 0 and ErrForecastHorizonExceeded.
func (c *ForecastCube) Sample(lonBin, latBin, step int) (float64, error) {
	if step < 0 || step >= len(c.Values) {
		return 0, ErrForecastHorizonExceeded
	}
	return c.Values[step][latBin][lonBin], nil
}

// Resolution returns the minutes between the first two step labels.
func (c *ForecastCube) Resolution() (int, error) {
	if len(c.Times) < 2 {
		return 0, fmt.Errorf("cube needs at least 2 steps to derive a resolution, has %d", len(c.Times))
	}
	d := c.Times[1].Sub(c.Times[0])
	if d <= 0 || d%time.Minute != 0 {
		return 0, fmt.Errorf("invalid cube step spacing %s", d)
	}
	return int(d / time.Minute), nil
}

// SeamIndex returns the index of the step labelled obsEnd+offset. An inexact
// match is an alignment error; no tolerance is applied.
func (c *ForecastCube) SeamIndex(obsEnd time.Time, offset time.Duration) (int, error) {
	want := obsEnd.Add(offset)
	for i, t := range c.Times {
		if t.Equal(want) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no cube step labelled %s", ErrAlignment, want.UTC().Format(WRFTimeLayout))
}

// Cell returns the grid cell that holds (lon, lat).
func (c *ForecastCube) Cell(lon, lat float64) GridCell {
	return GridCell{
		LonBin: Digitize(lon, BinEdges(c.Lons)),
		LatBin: Digitize(lat, BinEdges(c.Lats)),
	}
}
