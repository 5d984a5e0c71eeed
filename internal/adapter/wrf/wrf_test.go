package wrf

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2018, 10, 17, 18, 0, 0, 0, time.UTC)

func labels(n int, step time.Duration) []time.Time {
	out := make([]time.Time, n)
	for k := range out {
		out[k] = t0.Add(time.Duration(k) * step)
	}
	return out
}

// testGrid builds a 3-label grid over 3 lats x 4 lons where cell (j, i)
// accumulates j*10+i per step.
func testGrid() *grid {
	g := &grid{
		times: labels(3, 15*time.Minute),
		lats:  []float64{6.8, 6.9, 7.0},
		lons:  []float64{79.8, 79.9, 80.0, 80.1},
	}
	for t := 0; t < 3; t++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 4; i++ {
				g.cum = append(g.cum, float64(t*(j*10+i)))
			}
		}
	}
	return g
}

func TestToCube_Increments(t *testing.T) {
	c, err := testGrid().toCube(domain.BBox{LonMin: 79.7, LonMax: 80.2, LatMin: 6.7, LatMax: 7.1})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Steps())
	assert.Equal(t, labels(2, 15*time.Minute), c.Times)
	assert.Equal(t, []float64{6.8, 6.9, 7.0}, c.Lats)
	assert.Equal(t, []float64{79.8, 79.9, 80.0, 80.1}, c.Lons)
	assert.InDelta(t, 21.0, c.Values[0][2][1], 1e-9)
	assert.InDelta(t, 21.0, c.Values[1][2][1], 1e-9)
	assert.InDelta(t, 0.0, c.Values[1][0][0], 1e-9)
}

func TestToCube_ClampsNegativeIncrements(t *testing.T) {
	g := testGrid()
	// Bucket reset at the last label for cell (1, 1).
	g.cum[(2*3+1)*4+1] = 0

	c, err := g.toCube(domain.BBox{LonMin: 79.8, LonMax: 80.1, LatMin: 6.8, LatMax: 7.0})
	require.NoError(t, err)
	assert.Zero(t, c.Values[1][1][1])
	assert.InDelta(t, 11.0, c.Values[0][1][1], 1e-9)
}

func TestToCube_CropsToBBoxPlusOneCell(t *testing.T) {
	c, err := testGrid().toCube(domain.BBox{LonMin: 79.82, LonMax: 79.84, LatMin: 6.81, LatMax: 6.83})
	require.NoError(t, err)

	assert.Equal(t, []float64{6.8, 6.9}, c.Lats)
	assert.Equal(t, []float64{79.8, 79.9}, c.Lons)
	assert.InDelta(t, 11.0, c.Values[0][1][1], 1e-9)
}

func TestToCube_Errors(t *testing.T) {
	bbox := domain.BBox{LonMin: 79.8, LonMax: 80.1, LatMin: 6.8, LatMax: 7.0}

	g := testGrid()
	g.times = g.times[:1]
	_, err := g.toCube(bbox)
	assert.Error(t, err, "single label")

	g = testGrid()
	g.cum = g.cum[:10]
	_, err = g.toCube(bbox)
	assert.Error(t, err, "short data")

	_, err = testGrid().toCube(domain.BBox{LonMin: 81, LonMax: 82, LatMin: 6.8, LatMax: 7.0})
	assert.Error(t, err, "outside domain")
}

func TestWindow_DescendingAxis(t *testing.T) {
	lo, hi, ok := window([]float64{7.2, 7.1, 7.0, 6.9, 6.8}, 6.95, 7.05)
	require.True(t, ok)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 3, hi)
}

func TestParseTimes(t *testing.T) {
	chars := []byte("2018-10-17_18:00:002018-10-17_18:15:00")
	got, err := parseTimes(chars, 19)
	require.NoError(t, err)
	assert.Equal(t, labels(2, 15*time.Minute), got)

	padded := append([]byte("2018-10-17_18:00:00"), 0, 0)
	got, err = parseTimes(padded, 21)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{t0}, got)

	_, err = parseTimes(chars, 20)
	assert.Error(t, err)

	_, err = parseTimes([]byte("2018-10-17 18:00:00"), 19)
	assert.Error(t, err)
}

func TestWriteCubeExtract(t *testing.T) {
	want := &domain.ForecastCube{
		Times: labels(3, time.Hour),
		Lats:  []float64{6.8, 6.9},
		Lons:  []float64{79.8, 79.9, 80.0},
	}
	for s := 0; s < 3; s++ {
		var rows [][]float64
		for j := 0; j < 2; j++ {
			var row []float64
			for i := 0; i < 3; i++ {
				row = append(row, float64(s+j+i)*0.5)
			}
			rows = append(rows, row)
		}
		want.Values = append(want.Values, rows)
	}

	path := filepath.Join(t.TempDir(), "wrfout_d03_rf")
	require.NoError(t, WriteCube(path, want))

	e := NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := e.Extract(context.Background(), path, domain.BBox{LonMin: 79.8, LonMax: 80.0, LatMin: 6.8, LatMax: 6.9})
	require.NoError(t, err)

	assert.Equal(t, want.Times, got.Times)
	require.Len(t, got.Lats, 2)
	require.Len(t, got.Lons, 3)
	for j := range want.Lats {
		assert.InDelta(t, want.Lats[j], got.Lats[j], 1e-5)
	}
	for i := range want.Lons {
		assert.InDelta(t, want.Lons[i], got.Lons[i], 1e-5)
	}
	for s := range want.Values {
		for j := range want.Values[s] {
			for i := range want.Values[s][j] {
				assert.InDelta(t, want.Values[s][j][i], got.Values[s][j][i], 1e-4)
			}
		}
	}
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope"), domain.BBox{})
	assert.Error(t, err)
}
