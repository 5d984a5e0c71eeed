package raincell

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunKey = "2018-10-18_09:00:00_250m"

var colombo = time.FixedZone("+0530", 5*3600+30*60)

func testHeader(steps int) domain.Header {
	return domain.Header{
		ResolutionMinutes: 60,
		TotalSteps:        steps,
		Start:             time.Date(2018, 10, 17, 9, 0, 0, 0, colombo),
		End:               time.Date(2018, 10, 19, 9, 0, 0, 0, colombo),
	}
}

var testPoints = []domain.BasinPoint{{ID: 1}, {ID: 2}, {ID: 5}}

func testSeries() domain.OutputSeries {
	return domain.OutputSeries{Values: [][]float64{
		{1, 0.25, 3.04},
		{0, 0, 0},
		{2, 2, 12.35},
	}}
}

func TestWriter_Write(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "output"))

	path, err := w.Write(testRunKey, testHeader(3), testPoints, testSeries())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Root, testRunKey, FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "60 3 2018-10-17 09:00:00 2018-10-19 09:00:00\n"+
		"1 1.0\n2 0.0\n5 2.0\n"+
		"1 0.2\n2 0.0\n5 2.0\n"+
		"1 3.0\n2 0.0\n5 12.3\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
	assert.True(t, w.Exists(testRunKey))
}

func TestWriter_WriteExisting(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(testRunKey, testHeader(3), testPoints, testSeries())
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	other := domain.OutputSeries{Values: [][]float64{{9, 9, 9}, {9, 9, 9}, {9, 9, 9}}}
	_, err = w.Write(testRunKey, testHeader(3), testPoints, other)
	assert.True(t, errors.Is(err, domain.ErrOutputExists))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriter_RejectsBadShape(t *testing.T) {
	w := NewWriter(t.TempDir())

	t.Run("step count differs from header", func(t *testing.T) {
		_, err := w.Write(testRunKey, testHeader(4), testPoints, testSeries())
		require.Error(t, err)
		assert.False(t, w.Exists(testRunKey))
	})

	t.Run("points out of order", func(t *testing.T) {
		pts := []domain.BasinPoint{{ID: 2}, {ID: 1}, {ID: 5}}
		_, err := w.Write(testRunKey, testHeader(3), pts, testSeries())
		require.Error(t, err)
		assert.False(t, w.Exists(testRunKey))
	})

	t.Run("point count differs", func(t *testing.T) {
		_, err := w.Write(testRunKey, testHeader(3), testPoints[:2], testSeries())
		require.Error(t, err)
	})
}

func TestReadFile_RoundTrip(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(testRunKey, testHeader(3), testPoints, testSeries())
	require.NoError(t, err)

	f, err := ReadFile(path, colombo)
	require.NoError(t, err)
	assert.Equal(t, 60, f.Header.ResolutionMinutes)
	assert.Equal(t, 3, f.Header.TotalSteps)
	assert.True(t, f.Header.Start.Equal(testHeader(3).Start))
	assert.True(t, f.Header.End.Equal(testHeader(3).End))
	assert.Equal(t, []int{1, 2, 5}, f.IDs)
	assert.Equal(t, [][]float64{{1, 0.2, 3}, {0, 0, 0}, {2, 2, 12.3}}, f.Values)
}

func TestReadFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"bad header":       "60 3 2018-10-17\n",
		"short":            "60 3 2018-10-17 09:00:00 2018-10-19 09:00:00\n1 1.0\n2 1.0\n1 1.0\n2 1.0\n",
		"partial step":     "60 1 2018-10-17 09:00:00 2018-10-19 09:00:00\n1 1.0\n2 1.0\n1 1.0\n",
		"id order":         "60 2 2018-10-17 09:00:00 2018-10-19 09:00:00\n1 1.0\n2 1.0\n2 1.0\n1 1.0\n",
		"two decimals":     "60 1 2018-10-17 09:00:00 2018-10-19 09:00:00\n1 1.00\n",
		"no rows":          "60 1 2018-10-17 09:00:00 2018-10-19 09:00:00\n",
		"zero step header": "60 0 2018-10-17 09:00:00 2018-10-19 09:00:00\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := ReadFile(path, colombo)
			assert.Error(t, err)
		})
	}
}
