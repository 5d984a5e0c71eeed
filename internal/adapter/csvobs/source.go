// Package csvobs reads rainfall series exported as one CSV file per series,
// for reruns without database access.
package csvobs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// Source reads <Dir>/<station>.csv, where station is the descriptor's
// station (the fallback key for archived forecast series). Each file has a
// header row and then Time,<value> rows; times are wall-clock times in Loc.
// It implements pipeline.ObservationSource.
type Source struct {
	Dir string
	Loc *time.Location
}

// New creates a Source. A nil loc means UTC.
func New(dir string, loc *time.Location) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{Dir: dir, Loc: loc}
}

var timeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05"}

// Retrieve returns the rows of the series file with from <= time <= to in
// file order. A missing file is reported as domain.ErrSourceUnavailable.
func (s *Source) Retrieve(ctx context.Context, d domain.SeriesDescriptor, from, to time.Time) ([]domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, d.Station+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	var out []domain.Sample
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s:%d: expected time and value columns", path, line)
		}
		t, err := s.parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if t.Before(from) || t.After(to) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: value: %w", path, line, err)
		}
		out = append(out, domain.Sample{Time: t, Value: v})
	}
	return out, nil
}

func (s *Source) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, s.Loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}
