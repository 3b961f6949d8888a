// Package downsample reduces a dense series of sensor records to at most one
// representative per time bucket for chart rendering.
//
// The range [From, Until] is cut into buckets of Width starting at From. Bucket i covers
// [From+i*Width, From+(i+1)*Width), except the final bucket which also includes Until.
// The representative of a bucket is its earliest record. Empty buckets produce nothing.
package downsample

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/diwise/iot-sensor-storage/pkg/types"
)

var ErrInvalidPlan = errors.New("downsampling needs a positive interval or point count")

type Plan struct {
	From  time.Time
	Until time.Time
	Width time.Duration
}

// NewPlan widens the requested interval when needed so that no more than pick buckets cover
// the range. A pick below one leaves the interval as requested.
func NewPlan(after, now time.Time, intervalMinutes int, pick float64) (Plan, error) {
	from := after.UnixMilli()
	until := now.UnixMilli()

	width := int64(0)
	if intervalMinutes > 0 {
		width = int64(intervalMinutes) * time.Minute.Milliseconds()
	}

	span := until - from
	if pick >= 1 && span > 0 {
		minWidth := int64(math.Ceil(float64(span) / math.Floor(pick)))
		width = max(width, minWidth)
	}

	if width <= 0 {
		return Plan{}, ErrInvalidPlan
	}

	return Plan{
		From:  time.UnixMilli(from),
		Until: time.UnixMilli(until),
		Width: time.Duration(width) * time.Millisecond,
	}, nil
}

func (p Plan) Empty() bool {
	return !p.Until.After(p.From)
}

// Buckets is the number of buckets covering the range.
func (p Plan) Buckets() int64 {
	if p.Empty() {
		return 0
	}
	span := p.Until.UnixMilli() - p.From.UnixMilli()
	w := p.Width.Milliseconds()
	return (span + w - 1) / w
}

// Bucket returns the bucket index of t, or false when t is outside the range.
func (p Plan) Bucket(t time.Time) (int64, bool) {
	ts := t.UnixMilli()
	if p.Empty() || ts < p.From.UnixMilli() || ts > p.Until.UnixMilli() {
		return 0, false
	}

	idx := (ts - p.From.UnixMilli()) / p.Width.Milliseconds()
	// a record at exactly Until joins the last bucket instead of opening a new one
	return min(idx, p.Buckets()-1), true
}

// Select picks the earliest record of every non-empty bucket, in chronological order.
func (p Plan) Select(records []types.SensorRecord) []types.SensorRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b types.SensorRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	result := make([]types.SensorRecord, 0, min(int64(len(sorted)), p.Buckets()))
	last := int64(-1)

	for _, r := range sorted {
		idx, ok := p.Bucket(r.Timestamp)
		if !ok || idx <= last {
			continue
		}
		result = append(result, r)
		last = idx
	}

	return result
}

// EveryInterval keeps records spaced at least interval apart, starting with the earliest.
func EveryInterval(records []types.SensorRecord, interval time.Duration) []types.SensorRecord {
	if interval <= 0 {
		return records
	}

	result := make([]types.SensorRecord, 0, len(records))
	var lastKept time.Time

	for i, r := range records {
		if i == 0 || r.Timestamp.Sub(lastKept) >= interval {
			result = append(result, r)
			lastKept = r.Timestamp
		}
	}

	return result
}
