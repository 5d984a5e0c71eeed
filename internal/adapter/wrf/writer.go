package wrf

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/ctessum/cdf"
)

// convectiveShare is the part of the accumulated rainfall written to RAINC;
// the rest goes to RAINNC.
const convectiveShare = 0.25

// WriteCube writes c as a WRF-style rainfall file that Extractor reads back
// to an equal cube. Increments are re-accumulated, so the file has one more
// time label than c has steps; the extra label follows the last step at the
// cube resolution.
func WriteCube(path string, c *domain.ForecastCube) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := c.Resolution()
	if err != nil {
		return err
	}
	nt, ny, nx := c.Steps()+1, len(c.Lats), len(c.Lons)

	labels := make([]byte, 0, nt*len(domain.WRFTimeLayout))
	for t := 0; t < nt; t++ {
		var ts string
		if t < c.Steps() {
			ts = c.Times[t].UTC().Format(domain.WRFTimeLayout)
		} else {
			ts = c.Times[t-1].Add(time.Duration(res) * time.Minute).UTC().Format(domain.WRFTimeLayout)
		}
		labels = append(labels, ts...)
	}

	xlat := make([]float32, ny*nx)
	xlong := make([]float32, ny*nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			xlat[j*nx+i] = float32(c.Lats[j])
			xlong[j*nx+i] = float32(c.Lons[i])
		}
	}

	rainc := make([]float32, nt*ny*nx)
	rainnc := make([]float32, nt*ny*nx)
	acc := make([]float64, ny*nx)
	for t := 1; t < nt; t++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				k := j*nx + i
				acc[k] += c.Values[t-1][j][i]
				rainc[(t*ny+j)*nx+i] = float32(acc[k] * convectiveShare)
				rainnc[(t*ny+j)*nx+i] = float32(acc[k] * (1 - convectiveShare))
			}
		}
	}

	h := cdf.NewHeader(
		[]string{"Time", "DateStrLen", "south_north", "west_east"},
		[]int{nt, len(domain.WRFTimeLayout), ny, nx})
	h.AddAttribute("", "TITLE", "OUTPUT FROM WRF RAINFALL EXTRACT")
	h.AddVariable("Times", []string{"Time", "DateStrLen"}, []byte{0})
	h.AddVariable("XLAT", []string{"south_north", "west_east"}, []float32{0})
	h.AddAttribute("XLAT", "units", "degree_north")
	h.AddVariable("XLONG", []string{"south_north", "west_east"}, []float32{0})
	h.AddAttribute("XLONG", "units", "degree_east")
	for _, name := range rainVariables {
		h.AddVariable(name, []string{"Time", "south_north", "west_east"}, []float32{0})
		h.AddAttribute(name, "units", "mm")
	}
	h.Define()

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	f, err := cdf.Create(fh, h)
	if err != nil {
		return fmt.Errorf("create netcdf %s: %w", path, err)
	}
	data := map[string]any{
		"Times":  labels,
		"XLAT":   xlat,
		"XLONG":  xlong,
		"RAINC":  rainc,
		"RAINNC": rainnc,
	}
	names := make([]string, 0, len(data))
	for n := range data {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		end := f.Header.Lengths(name)
		w := f.Writer(name, make([]int, len(end)), end)
		if _, err := w.Write(data[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := cdf.UpdateNumRecs(fh); err != nil {
		return fmt.Errorf("update record count: %w", err)
	}
	return fh.Close()
}
