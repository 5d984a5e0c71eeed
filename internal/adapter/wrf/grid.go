package wrf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// grid is the full-domain content of a WRF rainfall file. cum holds
// accumulated rainfall flattened as [t][j][i] over len(times) x len(lats) x
// len(lons).
type grid struct {
	times []time.Time
	lats  []float64
	lons  []float64
	cum   []float64
}

func (g *grid) at(t, j, i int) float64 {
	return g.cum[(t*len(g.lats)+j)*len(g.lons)+i]
}

// window returns the index range [lo, hi] of the centers within one grid
// spacing of [lower, upper], so every location in the range keeps the cell
// nearest to it. Descending axes are handled. ok is false when the range
// misses the axis.
func window(centers []float64, lower, upper float64) (lo, hi int, ok bool) {
	if len(centers) > 1 {
		spacing := math.Abs(centers[1] - centers[0])
		lower, upper = lower-spacing, upper+spacing
	}
	lo, hi = -1, -1
	for i, c := range centers {
		if c >= lower && c <= upper {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return 0, 0, false
	}
	return lo, hi, true
}

// toCube crops g to bbox plus one cell and converts accumulations to
// per-step increments: step t holds cum[t+1]-cum[t] and is labelled times[t].
// Negative increments, from accumulation bucket resets, are clamped to 0.
func (g *grid) toCube(bbox domain.BBox) (*domain.ForecastCube, error) {
	if len(g.times) < 2 {
		return nil, fmt.Errorf("need at least 2 time steps, have %d", len(g.times))
	}
	if want := len(g.times) * len(g.lats) * len(g.lons); len(g.cum) != want {
		return nil, fmt.Errorf("rainfall has %d values, expected %d", len(g.cum), want)
	}
	j0, j1, ok := window(g.lats, bbox.LatMin, bbox.LatMax)
	if !ok {
		return nil, fmt.Errorf("no grid latitude within [%g, %g]", bbox.LatMin, bbox.LatMax)
	}
	i0, i1, ok := window(g.lons, bbox.LonMin, bbox.LonMax)
	if !ok {
		return nil, fmt.Errorf("no grid longitude within [%g, %g]", bbox.LonMin, bbox.LonMax)
	}

	steps := len(g.times) - 1
	c := &domain.ForecastCube{
		Values: make([][][]float64, steps),
		Times:  append([]time.Time(nil), g.times[:steps]...),
		Lats:   append([]float64(nil), g.lats[j0:j1+1]...),
		Lons:   append([]float64(nil), g.lons[i0:i1+1]...),
	}
	for t := 0; t < steps; t++ {
		rows := make([][]float64, 0, j1-j0+1)
		for j := j0; j <= j1; j++ {
			row := make([]float64, 0, i1-i0+1)
			for i := i0; i <= i1; i++ {
				row = append(row, math.Max(g.at(t+1, j, i)-g.at(t, j, i), 0))
			}
			rows = append(rows, row)
		}
		c.Values[t] = rows
	}
	return c, nil
}

// parseTimes splits a WRF Times char array of fixed-width labels into UTC
// times.
func parseTimes(chars []byte, width int) ([]time.Time, error) {
	if width <= 0 || len(chars) == 0 || len(chars)%width != 0 {
		return nil, fmt.Errorf("times array of %d chars does not split into labels of %d", len(chars), width)
	}
	n := len(chars) / width
	out := make([]time.Time, n)
	for k := 0; k < n; k++ {
		label := strings.TrimRight(string(chars[k*width:(k+1)*width]), "\x00 ")
		t, err := time.ParseInLocation(domain.WRFTimeLayout, label, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("time label %d: %w", k, err)
		}
		out[k] = t
	}
	return out, nil
}
