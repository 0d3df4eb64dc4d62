package chronotiles

import (
	"fmt"
	"time"
)

// Interval selects the time resolution of a dataset: the mapping between
// calendar instants and discrete frame indices. Frames count whole
// intervals since the Unix epoch in UTC.
type Interval string

const (
	Hourly  Interval = "hourly"
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

// TimeRange is a [Start, End) aggregation window expressed as instants.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

type resolution struct {
	step   time.Duration // fixed-width intervals
	months int           // calendar intervals, months per frame
}

var resolutions = map[Interval]resolution{
	Hourly:  {step: time.Hour},
	Daily:   {step: 24 * time.Hour},
	Weekly:  {step: 7 * 24 * time.Hour},
	Monthly: {months: 1},
	Yearly:  {months: 12},
}

func resolutionFor(interval Interval) (resolution, error) {
	res, ok := resolutions[interval]
	if !ok {
		return resolution{}, fmt.Errorf("%w: unknown interval %q", ErrInvalidConfig, interval)
	}
	return res, nil
}

func (r resolution) frame(t time.Time) int64 {
	if r.step > 0 {
		return floorDiv(t.Unix(), int64(r.step/time.Second))
	}
	u := t.UTC()
	months := int64(u.Year()-1970)*12 + int64(u.Month()-time.January)
	return floorDiv(months, int64(r.months))
}

func (r resolution) time(frame int64) time.Time {
	if r.step > 0 {
		return time.Unix(frame*int64(r.step/time.Second), 0).UTC()
	}
	months := frame * int64(r.months)
	return time.Date(1970, time.January+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
}

// FrameForTime converts an instant to the frame index containing it.
func FrameForTime(interval Interval, t time.Time) (int64, error) {
	res, err := resolutionFor(interval)
	if err != nil {
		return 0, err
	}
	return res.frame(t), nil
}

// TimeForFrame converts a frame index back to the instant at its start.
func TimeForFrame(interval Interval, frame int64) (time.Time, error) {
	res, err := resolutionFor(interval)
	if err != nil {
		return time.Time{}, err
	}
	return res.time(frame), nil
}

// rangeKey names one aggregation window by its tile-relative frame bounds.
// Aggregates for multiple windows coexist per feature under distinct keys.
func rangeKey(startFrame, endFrame int64) string {
	return fmt.Sprintf("%d_%d", startFrame, endFrame)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
