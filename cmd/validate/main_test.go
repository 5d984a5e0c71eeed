package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/raincell-etl/internal/adapter/points"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two points, 720 minute steps, one historical and one forecast day.
const validFile = "720 4 2018-10-17 09:00:00 2018-10-19 09:00:00\n" +
	"1 0.0\n2 1.5\n" +
	"1 0.3\n2 0.0\n" +
	"1 4.1\n2 2.2\n" +
	"1 0.0\n2 0.0\n"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "RAINCELL.DAT")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_Valid(t *testing.T) {
	grid := filepath.Join(t.TempDir(), "grid.txt")
	require.NoError(t, points.Write(grid, []domain.BasinPoint{{ID: 1, Lon: 79.9, Lat: 6.9}, {ID: 2, Lon: 79.91, Lat: 6.9}}))

	var out bytes.Buffer
	code := run(cli{File: writeFile(t, validFile), Points: grid, Backward: 1, Forward: 1, MaxValue: 500}, &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Header: 720 min, 4 steps")
}

func TestRun_Failures(t *testing.T) {
	cases := map[string]struct {
		content string
		c       cli
		want    string
	}{
		"span mismatch": {
			content: "720 4 2018-10-17 09:00:00 2018-10-20 09:00:00\n1 0.0\n1 0.0\n1 0.0\n1 0.0\n",
			c:       cli{Backward: -1, Forward: -1, MaxValue: 500},
			want:    "Header consistency",
		},
		"window mismatch": {
			content: validFile,
			c:       cli{Backward: 2, Forward: 3, MaxValue: 500},
			want:    "Run window",
		},
		"implausible value": {
			content: validFile,
			c:       cli{Backward: -1, Forward: -1, MaxValue: 4},
			want:    "point 1 step 2: 4.1",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tc.c.File = writeFile(t, tc.content)
			var out bytes.Buffer
			assert.Equal(t, 1, run(tc.c, &out))
			assert.Contains(t, out.String(), tc.want)
			assert.Contains(t, out.String(), "Validation FAILED.")
		})
	}
}

func TestRun_Unreadable(t *testing.T) {
	var out bytes.Buffer
	code := run(cli{File: writeFile(t, "720 4 2018-10-17 09:00:00 2018-10-19 09:00:00\n1 0.0\n"), Backward: -1, Forward: -1}, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}

func TestValidateCoverage(t *testing.T) {
	path := writeFile(t, validFile)
	var out bytes.Buffer
	grid := filepath.Join(t.TempDir(), "grid.txt")
	require.NoError(t, points.Write(grid, []domain.BasinPoint{{ID: 1}, {ID: 3}}))

	assert.Equal(t, 1, run(cli{File: path, Points: grid, Backward: -1, Forward: -1, MaxValue: 500}, &out))
	assert.Contains(t, out.String(), "grid point 3 missing from file")
	assert.Contains(t, out.String(), "file point 2 not in grid")
}
