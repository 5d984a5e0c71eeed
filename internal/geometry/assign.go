// Package geometry assigns basin points to observation stations and to
// forecast grid cells.
package geometry

import (
	"github.com/couchcryptid/raincell-etl/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Locator partitions the plane into one region per station.
type Locator interface {
	// Locate returns the name of the station whose region contains (lon, lat).
	// ok is false when no region contains the point.
	Locate(lon, lat float64) (name string, ok bool)
}

// Assign resolves the station and grid cell of every point. The result is
// parallel to points. Points outside the tessellation get an invalid station
// ref; every point gets a grid cell, clamped to the outer cells.
func Assign(points []domain.BasinPoint, tess Locator, lats, lons []float64) domain.Assignment {
	lonEdges := domain.BinEdges(lons)
	latEdges := domain.BinEdges(lats)

	out := make(domain.Assignment, len(points))
	for i, p := range points {
		var ref domain.StationRef
		if tess != nil {
			if name, ok := tess.Locate(p.Lon, p.Lat); ok {
				ref = domain.StationRef{Name: name, Valid: true}
			}
		}
		out[i] = domain.PointSource{
			Station: ref,
			Cell: domain.GridCell{
				LonBin: domain.Digitize(p.Lon, lonEdges),
				LatBin: domain.Digitize(p.Lat, latEdges),
			},
		}
	}
	return out
}

// PointBounds returns the bounding box of the points. It is the region the
// forecast cube is cropped to.
func PointBounds(points []domain.BasinPoint) domain.BBox {
	if len(points) == 0 {
		return domain.BBox{}
	}
	lons := make([]float64, len(points))
	lats := make([]float64, len(points))
	for i, p := range points {
		lons[i] = p.Lon
		lats[i] = p.Lat
	}
	return domain.BBox{
		LonMin: floats.Min(lons),
		LonMax: floats.Max(lons),
		LatMin: floats.Min(lats),
		LatMax: floats.Max(lats),
	}
}

// Unassigned counts the points with no station.
func Unassigned(a domain.Assignment) int {
	n := 0
	for _, ps := range a {
		if !ps.Station.Valid {
			n++
		}
	}
	return n
}
