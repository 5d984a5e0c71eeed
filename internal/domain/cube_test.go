package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinEdges(t *testing.T) {
	assert.Nil(t, BinEdges([]float64{1}))
	assert.Equal(t, []float64{1.5, 2.5}, BinEdges([]float64{1, 2, 3}))
	assert.Equal(t, []float64{2.5, 1.5}, BinEdges([]float64{3, 2, 1}))
}

func TestDigitize(t *testing.T) {
	t.Run("ascending", func(t *testing.T) {
		edges := BinEdges([]float64{1, 2, 3})
		cases := map[float64]int{
			-10: 0, 1: 0, 1.49: 0,
			1.5: 1, 2: 1, 2.49: 1,
			2.5: 2, 3: 2, 99: 2,
		}
		for x, want := range cases {
			assert.Equal(t, want, Digitize(x, edges), "x=%v", x)
		}
	})

	t.Run("descending", func(t *testing.T) {
		edges := BinEdges([]float64{3, 2, 1})
		cases := map[float64]int{
			99: 0, 3: 0, 2.5: 0,
			2.49: 1, 2: 1, 1.5: 1,
			1.49: 2, 1: 2, -10: 2,
		}
		for x, want := range cases {
			assert.Equal(t, want, Digitize(x, edges), "x=%v", x)
		}
	})

	t.Run("single center", func(t *testing.T) {
		assert.Equal(t, 0, Digitize(42, nil))
	})
}

func testCube(steps int, value float64) *ForecastCube {
	start := time.Date(2018, 10, 17, 18, 0, 0, 0, time.UTC)
	c := &ForecastCube{
		Lats: []float64{6.8, 6.9},
		Lons: []float64{79.8, 79.9, 80.0},
	}
	for s := 0; s < steps; s++ {
		c.Times = append(c.Times, start.Add(time.Duration(s)*time.Hour))
		grid := make([][]float64, len(c.Lats))
		for i := range grid {
			grid[i] = make([]float64, len(c.Lons))
			for j := range grid[i] {
				grid[i][j] = value
			}
		}
		c.Values = append(c.Values, grid)
	}
	return c
}

func TestForecastCube_Sample(t *testing.T) {
	c := testCube(3, 2)
	c.Values[1][1][2] = 7

	v, err := c.Sample(2, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	v, err = c.Sample(0, 0, 3)
	assert.True(t, errors.Is(err, ErrForecastHorizonExceeded))
	assert.Zero(t, v)
}

func TestForecastCube_SeamIndex(t *testing.T) {
	c := testCube(24, 0)
	obsEnd := time.Date(2018, 10, 18, 9, 0, 0, 0, colombo) // 03:30 UTC

	// 09:00 +05:30 is 03:30 UTC; the default shift lands on the 03:00 label.
	idx, err := c.SeamIndex(obsEnd, DefaultCubeTimeOffset)
	require.NoError(t, err)
	assert.Equal(t, 9, idx)
	assert.Equal(t, "2018-10-18_03:00:00", c.Times[idx].Format(WRFTimeLayout))

	_, err = c.SeamIndex(obsEnd, 0)
	assert.True(t, errors.Is(err, ErrAlignment))

	_, err = c.SeamIndex(obsEnd, -6*time.Hour)
	assert.True(t, errors.Is(err, ErrAlignment))
}

func TestForecastCube_Resolution(t *testing.T) {
	res, err := testCube(3, 0).Resolution()
	require.NoError(t, err)
	assert.Equal(t, 60, res)

	_, err = testCube(1, 0).Resolution()
	assert.Error(t, err)
}

func TestForecastCube_Validate(t *testing.T) {
	c := testCube(2, 0)
	require.NoError(t, c.Validate())

	c.Values[1] = c.Values[1][:1]
	assert.Error(t, c.Validate())

	c = testCube(2, 0)
	c.Times = c.Times[:1]
	assert.Error(t, c.Validate())
}

func TestForecastCube_Cell(t *testing.T) {
	c := testCube(1, 0)
	assert.Equal(t, GridCell{LonBin: 1, LatBin: 0}, c.Cell(79.91, 6.7))
	assert.Equal(t, GridCell{LonBin: 2, LatBin: 1}, c.Cell(81, 7))
}
