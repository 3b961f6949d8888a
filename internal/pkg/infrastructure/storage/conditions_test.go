package storage

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestWhereWithSensorAndRange(t *testing.T) {
	is := is.New(t)

	from := time.UnixMilli(1000)
	until := time.UnixMilli(2000)

	c := NewCondition(WithSensorID("AA:BB"), WithFrom(from), WithUntil(until))
	where, args := c.Where("ts")

	is.Equal("sensor_id = ? AND ts >= ? AND ts <= ?", where)
	is.Equal([]any{"AA:BB", int64(1000), int64(2000)}, args)
}

func TestWhereForQueuedRequests(t *testing.T) {
	is := is.New(t)

	c := NewCondition(WithKey("k1"), WithRequestType(4))
	where, args := c.Where("created_at")

	is.Equal("request_key = ? AND request_type = ?", where)
	is.Equal(2, len(args))
}

func TestEmptyConditionMatchesEverything(t *testing.T) {
	is := is.New(t)

	where, args := NewCondition().Where("ts")
	is.Equal("1 = 1", where)
	is.Equal(0, len(args))

	_, ok := NewCondition().Limit()
	is.True(!ok)
}

func TestSortAndLimit(t *testing.T) {
	is := is.New(t)

	c := NewCondition(WithSortDesc(true), WithLimit(1))
	is.Equal("ts DESC", c.OrderBy("ts"))

	limit, ok := c.Limit()
	is.True(ok)
	is.Equal(1, limit)
}
