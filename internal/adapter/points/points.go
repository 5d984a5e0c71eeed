// Package points loads the FLO-2D basin point grid.
package points

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// Files maps a model resolution key to its point grid file.
var Files = map[string]string{
	"150m": "klb_glecourse_points_150m.txt",
	"250m": "kelani_basin_points_250m.txt",
}

// PathFor returns the point grid file of model under dir.
func PathFor(dir, model string) (string, error) {
	name, ok := Files[model]
	if !ok {
		return "", fmt.Errorf("unknown model %q", model)
	}
	return filepath.Join(dir, name), nil
}

// Load reads an id,lon,lat CSV file and returns the points sorted by id. A
// non-numeric first row is treated as a header. Duplicate ids are an error.
func Load(path string) ([]domain.BasinPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open point grid: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	var pts []domain.BasinPoint
	seen := make(map[int]bool)
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("%s:%d: expected id,lon,lat", path, line)
		}
		p, err := parsePoint(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%s:%d: duplicate point id %d", path, line, p.ID)
		}
		seen[p.ID] = true
		pts = append(pts, p)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%s: no points", path)
	}

	slices.SortFunc(pts, func(a, b domain.BasinPoint) int { return cmp.Compare(a.ID, b.ID) })
	return pts, nil
}

func parsePoint(rec []string) (domain.BasinPoint, error) {
	// Some grids write ids as floats ("1.0").
	idf, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil {
		return domain.BasinPoint{}, fmt.Errorf("id: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return domain.BasinPoint{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return domain.BasinPoint{}, fmt.Errorf("lat: %w", err)
	}
	return domain.BasinPoint{ID: int(idf), Lon: lon, Lat: lat}, nil
}

// Write stores points as id,lon,lat rows.
func Write(path string, pts []domain.BasinPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create point grid: %w", err)
	}
	w := csv.NewWriter(f)
	for _, p := range pts {
		if err := w.Write([]string{
			strconv.Itoa(p.ID),
			strconv.FormatFloat(p.Lon, 'f', -1, 64),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
		}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
