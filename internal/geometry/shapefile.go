package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/jonas-p/go-shp"
)

// Region is a named polygon read from a shapefile.
type Region struct {
	Name    string
	Polygon geom.Polygon
}

// ReadRegions reads every polygon of a shapefile, naming each by the DBF
// attribute nameField. An empty nameField leaves names blank. Non-polygon
// shapes are skipped.
func ReadRegions(path, nameField string) ([]Region, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile %s: %w", path, err)
	}
	defer r.Close()

	field := -1
	if nameField != "" {
		for i, f := range r.Fields() {
			if strings.EqualFold(f.String(), nameField) {
				field = i
				break
			}
		}
		if field < 0 {
			return nil, fmt.Errorf("shapefile %s has no attribute %q", path, nameField)
		}
	}

	var regions []Region
	for r.Next() {
		n, s := r.Shape()
		poly, ok := s.(*shp.Polygon)
		if !ok {
			continue
		}
		reg := Region{Polygon: toGeomPolygon(poly)}
		if field >= 0 {
			reg.Name = strings.TrimSpace(r.ReadAttribute(n, field))
		}
		regions = append(regions, reg)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading shapefile %s: %w", path, err)
	}
	return regions, nil
}

func toGeomPolygon(p *shp.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p.Parts))
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		path := make(geom.Path, 0, end-start)
		for _, pt := range p.Points[start:end] {
			path = append(path, geom.Point{X: pt.X, Y: pt.Y})
		}
		out = append(out, path)
	}
	return out
}

// WriteRegions writes regions as a polygon shapefile with a single string
// attribute nameField.
func WriteRegions(path, nameField string, regions []Region) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("creating shapefile %s: %w", path, err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{shp.StringField(nameField, 64)}); err != nil {
		return fmt.Errorf("setting shapefile fields: %w", err)
	}
	for _, reg := range regions {
		parts := make([][]shp.Point, 0, len(reg.Polygon))
		for _, path := range reg.Polygon {
			part := make([]shp.Point, len(path))
			for i, pt := range path {
				part[i] = shp.Point{X: pt.X, Y: pt.Y}
			}
			parts = append(parts, part)
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&poly)
		if err := w.WriteAttribute(int(row), 0, reg.Name); err != nil {
			return fmt.Errorf("writing attribute of %q: %w", reg.Name, err)
		}
	}
	return nil
}

// indexedRegion is a region stored in the R-tree. order preserves file order.
type indexedRegion struct {
	geom.Polygon
	name  string
	order int
}

// ShapefileTessellation locates points in pre-built Thiessen polygons.
type ShapefileTessellation struct {
	tree *rtree.Rtree
}

// NewShapefileTessellation indexes regions. When polygons overlap the one
// listed first wins.
func NewShapefileTessellation(regions []Region) (*ShapefileTessellation, error) {
	if len(regions) == 0 {
		return nil, errors.New("tessellation has no polygons")
	}
	tree := rtree.NewTree(25, 50)
	for i, reg := range regions {
		if reg.Name == "" {
			return nil, fmt.Errorf("tessellation polygon %d has no station name", i)
		}
		tree.Insert(&indexedRegion{Polygon: reg.Polygon, name: reg.Name, order: i})
	}
	return &ShapefileTessellation{tree: tree}, nil
}

// LoadShapefileTessellation reads Thiessen polygons named by idField.
func LoadShapefileTessellation(path, idField string) (*ShapefileTessellation, error) {
	regions, err := ReadRegions(path, idField)
	if err != nil {
		return nil, err
	}
	return NewShapefileTessellation(regions)
}

// Locate implements Locator. Points on a polygon edge count as inside.
func (t *ShapefileTessellation) Locate(lon, lat float64) (string, bool) {
	pt := geom.Point{X: lon, Y: lat}
	var best *indexedRegion
	for _, g := range t.tree.SearchIntersect(pt.Bounds()) {
		reg, ok := g.(*indexedRegion)
		if !ok || pt.Within(reg.Polygon) == geom.Outside {
			continue
		}
		if best == nil || reg.order < best.order {
			best = reg
		}
	}
	if best == nil {
		return "", false
	}
	return best.name, true
}
