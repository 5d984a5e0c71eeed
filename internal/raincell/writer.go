// Package raincell reads and writes RAINCELL.DAT files, the rainfall boundary
// condition of the FLO-2D model.
//
// The first line holds the resolution in minutes, the step count, and the
// start and end timestamps. It is followed by one "<id> <value>" row per point
// per step, step-major, points in ascending ID order, values with one decimal.
package raincell

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/raincell-etl/internal/domain"
)

// FileName is the name of the file inside each run directory.
const FileName = "RAINCELL.DAT"

// Writer writes RAINCELL files under Root, one directory per run key.
type Writer struct {
	Root string
}

// NewWriter creates a Writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// Dir returns the run directory of runKey.
func (w *Writer) Dir(runKey string) string {
	return filepath.Join(w.Root, runKey)
}

// Exists reports whether the run directory of runKey is present.
func (w *Writer) Exists(runKey string) bool {
	_, err := os.Stat(w.Dir(runKey))
	return err == nil
}

// Write claims the run directory and writes the file into it. The claim is an
// exclusive mkdir, so concurrent writers of the same key never both succeed;
// the loser gets domain.ErrOutputExists. The file appears under its final name
// only once complete. On failure the claimed directory is removed.
func (w *Writer) Write(runKey string, h domain.Header, points []domain.BasinPoint, out domain.OutputSeries) (path string, err error) {
	if err := checkShape(h, points, out); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}

	dir := w.Dir(runKey)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrOutputExists, dir)
		}
		return "", fmt.Errorf("claim run directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	tmp, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := encode(bw, h, points, out); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flush %s: %w", FileName, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", FileName, err)
	}

	path = filepath.Join(dir, FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", FileName, err)
	}
	return path, nil
}

func checkShape(h domain.Header, points []domain.BasinPoint, out domain.OutputSeries) error {
	if len(out.Values) != len(points) {
		return fmt.Errorf("series has %d points, grid has %d", len(out.Values), len(points))
	}
	for i, row := range out.Values {
		if len(row) != h.TotalSteps {
			return fmt.Errorf("point %d has %d steps, header declares %d", points[i].ID, len(row), h.TotalSteps)
		}
	}
	for i := 1; i < len(points); i++ {
		if points[i].ID <= points[i-1].ID {
			return fmt.Errorf("points not in ascending id order at %d", points[i].ID)
		}
	}
	return nil
}

func encode(bw *bufio.Writer, h domain.Header, points []domain.BasinPoint, out domain.OutputSeries) error {
	if _, err := fmt.Fprintf(bw, "%d %d %s %s\n", h.ResolutionMinutes, h.TotalSteps,
		h.Start.Format(domain.TimestampLayout), h.End.Format(domain.TimestampLayout)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for step := 0; step < h.TotalSteps; step++ {
		for i, p := range points {
			if _, err := fmt.Fprintf(bw, "%d %.1f\n", p.ID, out.Values[i][step]); err != nil {
				return fmt.Errorf("write step %d: %w", step, err)
			}
		}
	}
	return nil
}
