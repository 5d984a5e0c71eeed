package geometry

import (
	"errors"
	"math"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/ctessum/geom"
)

// VoronoiTessellation assigns each location to its nearest station, which is
// the Thiessen partition of the station set. Distances are planar in degrees.
// An optional boundary clips the partition; locations outside it have no
// station.
type VoronoiTessellation struct {
	stations []domain.Station
	boundary []geom.Polygon
}

// NewVoronoiTessellation builds the partition. boundary may be empty.
func NewVoronoiTessellation(stations []domain.Station, boundary []Region) (*VoronoiTessellation, error) {
	if len(stations) == 0 {
		return nil, errors.New("voronoi tessellation needs at least one station")
	}
	v := &VoronoiTessellation{stations: stations}
	for _, reg := range boundary {
		v.boundary = append(v.boundary, reg.Polygon)
	}
	return v, nil
}

// Locate implements Locator. Equidistant stations resolve to the one
// listed first.
func (v *VoronoiTessellation) Locate(lon, lat float64) (string, bool) {
	pt := geom.Point{X: lon, Y: lat}
	if len(v.boundary) > 0 && !v.inBoundary(pt) {
		return "", false
	}

	best := 0
	bestDist := math.Inf(1)
	for i, s := range v.stations {
		d := math.Hypot(s.Lon-lon, s.Lat-lat)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return v.stations[best].Name, true
}

func (v *VoronoiTessellation) inBoundary(pt geom.Point) bool {
	for _, poly := range v.boundary {
		if pt.Within(poly) != geom.Outside {
			return true
		}
	}
	return false
}
