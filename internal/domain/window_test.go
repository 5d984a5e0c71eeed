package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colombo = time.FixedZone("+0530", 5*3600+30*60)

func testAnchor() time.Time {
	return time.Date(2018, 10, 18, 9, 0, 0, 0, colombo)
}

func TestNewRunWindow(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		w, err := NewRunWindow(testAnchor(), 2, 3)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2018, 10, 16, 9, 0, 0, 0, colombo), w.ObsStart())
		assert.Equal(t, testAnchor(), w.ObsEnd())
		assert.Equal(t, time.Date(2018, 10, 21, 9, 0, 0, 0, colombo), w.ForecastEnd())
	})

	t.Run("zero historical days", func(t *testing.T) {
		w, err := NewRunWindow(testAnchor(), 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, w.ExpectedHourlySamples())
	})

	t.Run("negative historical days", func(t *testing.T) {
		_, err := NewRunWindow(testAnchor(), -1, 3)
		assert.Error(t, err)
	})

	t.Run("no forecast days", func(t *testing.T) {
		_, err := NewRunWindow(testAnchor(), 2, 0)
		assert.Error(t, err)
	})

	t.Run("anchor off the hour", func(t *testing.T) {
		_, err := NewRunWindow(testAnchor().Add(30*time.Minute), 2, 3)
		assert.Error(t, err)
	})

	t.Run("half hour zone anchor is on the hour", func(t *testing.T) {
		// 09:00 +05:30 is 03:30 UTC; it must not be rejected.
		_, err := NewRunWindow(time.Date(2018, 10, 18, 9, 0, 0, 0, colombo), 1, 1)
		require.NoError(t, err)
	})
}

func TestRunWindow_HourlyTimeline(t *testing.T) {
	w, err := NewRunWindow(testAnchor(), 1, 1)
	require.NoError(t, err)

	timeline := w.HourlyTimeline()
	require.Len(t, timeline, 25)
	assert.Equal(t, w.ObsStart(), timeline[0])
	assert.Equal(t, w.ObsEnd(), timeline[24])
	for i := 1; i < len(timeline); i++ {
		assert.Equal(t, time.Hour, timeline[i].Sub(timeline[i-1]))
	}
}

func TestRunWindow_StepCounts(t *testing.T) {
	cases := []struct {
		name       string
		h, f, res  int
		historical int
		forecast   int
		total      int
	}{
		{name: "hourly 1+1", h: 1, f: 1, res: 60, historical: 25, forecast: 23, total: 48},
		{name: "hourly 2+3", h: 2, f: 3, res: 60, historical: 49, forecast: 71, total: 120},
		{name: "15 minute 2+3", h: 2, f: 3, res: 15, historical: 193, forecast: 287, total: 480},
		{name: "forecast only", h: 0, f: 1, res: 60, historical: 1, forecast: 23, total: 24},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewRunWindow(testAnchor(), tc.h, tc.f)
			require.NoError(t, err)
			assert.Equal(t, tc.historical, w.HistoricalSteps(tc.res))
			assert.Equal(t, tc.forecast, w.ForecastSteps(tc.res))
			assert.Equal(t, tc.total, w.TotalSteps(tc.res))
			assert.Equal(t, w.TotalSteps(tc.res), w.HistoricalSteps(tc.res)+w.ForecastSteps(tc.res))
		})
	}
}

func TestStepsPerDay(t *testing.T) {
	n, err := StepsPerDay(60)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = StepsPerDay(5)
	require.NoError(t, err)
	assert.Equal(t, 288, n)

	for _, res := range []int{0, -60, 7, 1441} {
		_, err := StepsPerDay(res)
		assert.Error(t, err, "resolution %d", res)
	}
}

func TestTruncateHour(t *testing.T) {
	in := time.Date(2018, 10, 18, 3, 45, 12, 0, time.UTC) // 09:15:12 +05:30
	got := TruncateHour(in, colombo)
	assert.Equal(t, time.Date(2018, 10, 18, 9, 0, 0, 0, colombo), got)

	// time.Truncate works in absolute time and lands on the half hour here.
	assert.NotEqual(t, got, in.Truncate(time.Hour).In(colombo))
}

func TestCurrentHour(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2018, 10, 18, 3, 45, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, time.Date(2018, 10, 18, 9, 0, 0, 0, colombo), CurrentHour(colombo))
	assert.Equal(t, fake.Now(), Now())
}

func TestRunKey(t *testing.T) {
	assert.Equal(t, "2018-10-18_09:00:00_250m", RunKey(testAnchor(), "250m", ""))
	assert.Equal(t, "2018-10-18_09:00:00_150m_rerun", RunKey(testAnchor(), "150m", "rerun"))
}
