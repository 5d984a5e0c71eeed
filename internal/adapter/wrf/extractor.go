// Package wrf extracts forecast rainfall cubes from WRF netCDF output.
//
// A rainfall file carries Times (char, Time x DateStrLen), the accumulated
// convective and non-convective rainfall RAINC and RAINNC (Time x south_north
// x west_east) and cell centers, either as XLAT/XLONG (2-D or with a leading
// Time dimension) or as 1-D lat/lon variables.
package wrf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/ctessum/cdf"
)

// Rainfall variables summed into the accumulated total.
var rainVariables = []string{"RAINC", "RAINNC"}

// Extractor reads WRF rainfall files.
// It implements pipeline.CubeExtractor.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads the file at path and returns the per-step rainfall cube
// cropped to bbox.
func (e *Extractor) Extract(ctx context.Context, path string, bbox domain.BBox) (*domain.ForecastCube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := readGrid(path)
	if err != nil {
		return nil, fmt.Errorf("read wrf file %s: %w", path, err)
	}
	c, err := g.toCube(bbox)
	if err != nil {
		return nil, fmt.Errorf("wrf file %s: %w", path, err)
	}
	e.logger.Info("forecast cube extracted",
		"path", path,
		"steps", c.Steps(),
		"lats", len(c.Lats),
		"lons", len(c.Lons),
		"first_step", c.Times[0].Format(domain.WRFTimeLayout),
	)
	return c, nil
}

func readGrid(path string) (*grid, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := cdf.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("parse netcdf header: %w", err)
	}
	vars := f.Header.Variables()

	timesRaw, err := readVar(f, "Times")
	if err != nil {
		return nil, err
	}
	chars, err := asBytes(timesRaw)
	if err != nil {
		return nil, fmt.Errorf("Times: %w", err)
	}
	dims := f.Header.Lengths("Times")
	times, err := parseTimes(chars, dims[len(dims)-1])
	if err != nil {
		return nil, err
	}

	lats, lons, err := readAxes(f, vars)
	if err != nil {
		return nil, err
	}

	var cum []float64
	for _, name := range rainVariables {
		if !slices.Contains(vars, name) {
			return nil, fmt.Errorf("missing variable %s", name)
		}
		raw, err := readVar(f, name)
		if err != nil {
			return nil, err
		}
		vals, err := asFloats(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if cum == nil {
			cum = vals
			continue
		}
		if len(vals) != len(cum) {
			return nil, fmt.Errorf("%s has %d values, expected %d", name, len(vals), len(cum))
		}
		for i, v := range vals {
			cum[i] += v
		}
	}

	return &grid{times: times, lats: lats, lons: lons, cum: cum}, nil
}

// readAxes returns the latitude and longitude cell centers.
func readAxes(f *cdf.File, vars []string) (lats, lons []float64, err error) {
	switch {
	case slices.Contains(vars, "XLAT") && slices.Contains(vars, "XLONG"):
		latv, err := readFloats(f, "XLAT")
		if err != nil {
			return nil, nil, err
		}
		lonv, err := readFloats(f, "XLONG")
		if err != nil {
			return nil, nil, err
		}
		dims := f.Header.Lengths("XLAT")
		if len(dims) < 2 {
			return nil, nil, fmt.Errorf("XLAT has %d dimensions, expected 2 or 3", len(dims))
		}
		ny, nx := dims[len(dims)-2], dims[len(dims)-1]
		if len(latv) < ny*nx || len(lonv) < ny*nx {
			return nil, nil, fmt.Errorf("XLAT/XLONG shorter than %dx%d", ny, nx)
		}
		// First time slice: latitude varies down column 0, longitude along row 0.
		lats = make([]float64, ny)
		for j := range lats {
			lats[j] = latv[j*nx]
		}
		lons = append([]float64(nil), lonv[:nx]...)
		return lats, lons, nil
	case slices.Contains(vars, "lat") && slices.Contains(vars, "lon"):
		if lats, err = readFloats(f, "lat"); err != nil {
			return nil, nil, err
		}
		if lons, err = readFloats(f, "lon"); err != nil {
			return nil, nil, err
		}
		return lats, lons, nil
	default:
		return nil, nil, fmt.Errorf("no XLAT/XLONG or lat/lon variables")
	}
}

func readVar(f *cdf.File, name string) (any, error) {
	if !slices.Contains(f.Header.Variables(), name) {
		return nil, fmt.Errorf("missing variable %s", name)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return buf, nil
}

func readFloats(f *cdf.File, name string) ([]float64, error) {
	raw, err := readVar(f, name)
	if err != nil {
		return nil, err
	}
	vals, err := asFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return vals, nil
}

func asFloats(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float32:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out, nil
	case []float64:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func asBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case []int8:
		out := make([]byte, len(x))
		for i, c := range x {
			out[i] = byte(c)
		}
		return out, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("unsupported char type %T", v)
	}
}
