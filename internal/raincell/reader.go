package raincell

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// File is a parsed RAINCELL file.
type File struct {
	Header domain.Header
	IDs    []int       // point ids in row order
	Values [][]float64 // [point][step]
}

// ReadFile parses the RAINCELL file at path. Timestamps are read in loc. It
// checks that every step lists the same ids in ascending order and that the
// row count matches the header.
func ReadFile(path string, loc *time.Location) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: empty file", path)
	}
	h, err := parseHeader(sc.Text(), loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := &File{Header: h}
	var step, pos int
	line := 1
	for sc.Scan() {
		line++
		id, v, err := parseRow(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		if step == 0 {
			if len(out.IDs) > 0 && id <= out.IDs[len(out.IDs)-1] {
				// First id not above its predecessor starts step 1.
				if id != out.IDs[0] {
					return nil, fmt.Errorf("%s:%d: id %d out of order", path, line, id)
				}
				step, pos = 1, 0
			} else {
				out.IDs = append(out.IDs, id)
				out.Values = append(out.Values, append(make([]float64, 0, h.TotalSteps), v))
				continue
			}
		}

		if id != out.IDs[pos] {
			return nil, fmt.Errorf("%s:%d: id %d, expected %d", path, line, id, out.IDs[pos])
		}
		out.Values[pos] = append(out.Values[pos], v)
		pos++
		if pos == len(out.IDs) {
			step, pos = step+1, 0
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(out.IDs) == 0 {
		return nil, fmt.Errorf("%s: no rows", path)
	}
	if pos != 0 {
		return nil, fmt.Errorf("%s: last step has %d of %d points", path, pos, len(out.IDs))
	}
	if got := len(out.Values[0]); got != h.TotalSteps {
		return nil, fmt.Errorf("%s: %d steps, header declares %d", path, got, h.TotalSteps)
	}
	return out, nil
}

func parseHeader(s string, loc *time.Location) (domain.Header, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return domain.Header{}, fmt.Errorf("malformed header %q", s)
	}
	res, err := strconv.Atoi(fields[0])
	if err != nil {
		return domain.Header{}, fmt.Errorf("header resolution: %w", err)
	}
	total, err := strconv.Atoi(fields[1])
	if err != nil {
		return domain.Header{}, fmt.Errorf("header step count: %w", err)
	}
	if res <= 0 || total <= 0 {
		return domain.Header{}, fmt.Errorf("header resolution %d and step count %d must be positive", res, total)
	}
	start, err := time.ParseInLocation(domain.TimestampLayout, fields[2]+" "+fields[3], loc)
	if err != nil {
		return domain.Header{}, fmt.Errorf("header start: %w", err)
	}
	end, err := time.ParseInLocation(domain.TimestampLayout, fields[4]+" "+fields[5], loc)
	if err != nil {
		return domain.Header{}, fmt.Errorf("header end: %w", err)
	}
	return domain.Header{ResolutionMinutes: res, TotalSteps: total, Start: start, End: end}, nil
}

func parseRow(s string) (int, float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed row %q", s)
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("row id: %w", err)
	}
	dot := strings.IndexByte(fields[1], '.')
	if dot < 0 || len(fields[1])-dot-1 != 1 {
		return 0, 0, fmt.Errorf("value %q is not written with one decimal", fields[1])
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("row value: %w", err)
	}
	return id, v, nil
}
