package pipeline

import (
	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// Stitch joins the observed and forecast segments of every point.
//
// Historical step t (0 through w.HistoricalSteps(res)-1) reads hourly sample
// t*res/60 of the point's station series, so sub-hourly resolutions hold the
// hourly value. Points without a station, or whose station has no series,
// get 0.
//
// Forecast step k (1 through w.ForecastSteps(res)) samples cube step seam+k in
// the point's grid cell regardless of its station. Steps past the end of the
// cube give 0; their count is returned.
func Stitch(assignment domain.Assignment, series map[string]domain.TimeSeries, cube *domain.ForecastCube,
	seam int, w domain.RunWindow, res int) (domain.OutputSeries, int) {
	historical := w.HistoricalSteps(res)
	forecast := w.ForecastSteps(res)

	out := domain.OutputSeries{Values: make([][]float64, len(assignment))}
	exceeded := 0
	for i, ps := range assignment {
		row := make([]float64, 0, historical+forecast)

		var ts domain.TimeSeries
		if ps.Station.Valid {
			ts = series[ps.Station.Name]
		}
		for t := 0; t < historical; t++ {
			var v float64
			if h := t * res / 60; h < len(ts) {
				v = ts[h].Value
			}
			row = append(row, v)
		}

		for k := 1; k <= forecast; k++ {
			v, err := cube.Sample(ps.Cell.LonBin, ps.Cell.LatBin, seam+k)
			if err != nil {
				exceeded++
			}
			row = append(row, v)
		}
		out.Values[i] = row
	}
	return out, exceeded
}
