package downsample

import (
	"math/rand"
	"testing"
	"time"

	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/matryer/is"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTwoHoursOfMinuteRecordsIntoTwelvePoints(t *testing.T) {
	is := is.New(t)

	records := series(start, 120, time.Minute)
	now := start.Add(2*time.Hour + 30*time.Second)

	plan, err := NewPlan(start, now, 10, 12)
	is.NoErr(err)

	result := plan.Select(records)

	is.True(len(result) <= 12)
	is.True(len(result) >= 11)
	is.Equal(start, result[0].Timestamp)
	is.True(!result[len(result)-1].Timestamp.Before(start.Add(100 * time.Minute)))
	assertAscending(is, result)
}

func TestBucketCountBoundForEvenlySpacedRecords(t *testing.T) {
	is := is.New(t)
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		spacing := time.Duration(1+rnd.Intn(300)) * time.Second
		count := 1 + rnd.Intn(500)
		interval := 1 + rnd.Intn(60)

		records := series(start, count, spacing)
		now := start.Add(time.Duration(count) * spacing)

		plan, err := NewPlan(start, now, interval, 0)
		is.NoErr(err)

		result := plan.Select(records)

		window := now.Sub(start)
		width := time.Duration(interval) * time.Minute
		bound := int((window + width - 1) / width)

		is.True(len(result) <= bound)
		assertAscending(is, result)

		for _, r := range result {
			idx, ok := plan.Bucket(r.Timestamp)
			is.True(ok)
			lower := start.Add(time.Duration(idx) * width)
			is.True(!r.Timestamp.Before(lower))
			is.True(r.Timestamp.Before(lower.Add(width)))
		}
	}
}

func TestThatRecordAtRangeEndStaysInLastBucket(t *testing.T) {
	is := is.New(t)

	now := start.Add(time.Hour)
	plan, err := NewPlan(start, now, 30, 0)
	is.NoErr(err)
	is.Equal(int64(2), plan.Buckets())

	idx, ok := plan.Bucket(now)
	is.True(ok)
	is.Equal(int64(1), idx)

	_, ok = plan.Bucket(now.Add(time.Millisecond))
	is.True(!ok)

	_, ok = plan.Bucket(start.Add(-time.Millisecond))
	is.True(!ok)
}

func TestEmptyBucketsProduceNothing(t *testing.T) {
	is := is.New(t)

	records := []types.SensorRecord{
		{LUID: "x", Timestamp: start.Add(time.Minute)},
		{LUID: "x", Timestamp: start.Add(95 * time.Minute)},
	}

	plan, err := NewPlan(start, start.Add(2*time.Hour), 10, 0)
	is.NoErr(err)

	result := plan.Select(records)
	is.Equal(2, len(result))
}

func TestSelectionIsDeterministicForUnsortedInput(t *testing.T) {
	is := is.New(t)

	records := series(start, 60, time.Minute)
	shuffled := append([]types.SensorRecord{}, records...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	plan, err := NewPlan(start, start.Add(time.Hour), 5, 0)
	is.NoErr(err)

	is.Equal(plan.Select(records), plan.Select(shuffled))
}

func TestPlanNeedsIntervalOrPick(t *testing.T) {
	is := is.New(t)

	_, err := NewPlan(start, start.Add(time.Hour), 0, 0)
	is.Equal(ErrInvalidPlan, err)

	plan, err := NewPlan(start, start.Add(time.Hour), 0, 4)
	is.NoErr(err)
	is.Equal(15*time.Minute, plan.Width)
}

func TestPlanWithRangeInTheFutureIsEmpty(t *testing.T) {
	is := is.New(t)

	plan, err := NewPlan(start.Add(time.Hour), start, 10, 0)
	is.NoErr(err)
	is.True(plan.Empty())
	is.Equal(0, len(plan.Select(series(start, 10, time.Minute))))
}

func TestEveryInterval(t *testing.T) {
	is := is.New(t)

	records := series(start, 10, 20*time.Second)
	result := EveryInterval(records, time.Minute)

	is.Equal(4, len(result))
	is.Equal(start, result[0].Timestamp)
	is.Equal(start.Add(time.Minute), result[1].Timestamp)
}

func series(from time.Time, count int, spacing time.Duration) []types.SensorRecord {
	records := make([]types.SensorRecord, 0, count)
	for i := 0; i < count; i++ {
		temp := float64(i)
		records = append(records, types.SensorRecord{
			MacID:       "AA:BB:CC:DD:EE:FF",
			Timestamp:   from.Add(time.Duration(i) * spacing),
			Temperature: &temp,
		})
	}
	return records
}

func assertAscending(is *is.I, records []types.SensorRecord) {
	for i := 1; i < len(records); i++ {
		is.True(records[i].Timestamp.After(records[i-1].Timestamp))
	}
}
