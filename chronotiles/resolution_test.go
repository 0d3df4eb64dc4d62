package chronotiles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourlyFrames(t *testing.T) {
	frame, err := FrameForTime(Hourly, time.Date(1970, 1, 1, 10, 30, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, int64(10), frame)

	ts, err := TimeForFrame(Hourly, 10)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(1970, 1, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestDailyFrames(t *testing.T) {
	frame, err := FrameForTime(Daily, time.Date(1970, 1, 3, 23, 59, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), frame)
}

func TestMonthlyFrames(t *testing.T) {
	frame, err := FrameForTime(Monthly, time.Date(1971, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, int64(14), frame)

	ts, err := TimeForFrame(Monthly, 14)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(1971, 3, 1, 0, 0, 0, 0, time.UTC), ts)
}

func TestYearlyFrames(t *testing.T) {
	frame, err := FrameForTime(Yearly, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, int64(54), frame)
}

func TestFrameRoundTrip(t *testing.T) {
	for _, interval := range []Interval{Hourly, Daily, Weekly, Monthly, Yearly} {
		for _, frame := range []int64{0, 1, 100, 9999} {
			ts, err := TimeForFrame(interval, frame)
			assert.NoError(t, err)
			back, err := FrameForTime(interval, ts)
			assert.NoError(t, err)
			assert.Equal(t, frame, back, "interval %s frame %d", interval, frame)
		}
	}
}

func TestUnknownInterval(t *testing.T) {
	_, err := FrameForTime(Interval("fortnightly"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRangeKey(t *testing.T) {
	assert.Equal(t, "10_12", rangeKey(10, 12))
	assert.Equal(t, "-5_0", rangeKey(-5, 0))
}
