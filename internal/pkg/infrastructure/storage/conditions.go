package storage

import (
	"strings"
	"time"
)

type ConditionFunc func(*Condition) *Condition

// Condition describes a filter over the records or queued_requests tables.
// Timestamps are stored as unix milliseconds in both engines.
type Condition struct {
	SensorID string

	From   time.Time
	Until  time.Time
	After  time.Time
	Before time.Time

	Key         string
	RequestType int

	sortDesc bool
	limit    *int
}

func NewCondition(conditions ...ConditionFunc) *Condition {
	c := &Condition{}
	for _, f := range conditions {
		f(c)
	}
	return c
}

// Where returns a WHERE clause body using ? placeholders together with its arguments.
// The time column is "ts" for records and "created_at" for queued requests.
func (c Condition) Where(timeColumn string) (string, []any) {
	where := []string{}
	args := []any{}

	if c.SensorID != "" {
		where = append(where, "sensor_id = ?")
		args = append(args, c.SensorID)
	}

	if c.Key != "" {
		where = append(where, "request_key = ?")
		args = append(args, c.Key)
	}

	if c.RequestType != 0 {
		where = append(where, "request_type = ?")
		args = append(args, c.RequestType)
	}

	if !c.From.IsZero() {
		where = append(where, timeColumn+" >= ?")
		args = append(args, c.From.UnixMilli())
	}

	if !c.Until.IsZero() {
		where = append(where, timeColumn+" <= ?")
		args = append(args, c.Until.UnixMilli())
	}

	if !c.After.IsZero() {
		where = append(where, timeColumn+" > ?")
		args = append(args, c.After.UnixMilli())
	}

	if !c.Before.IsZero() {
		where = append(where, timeColumn+" < ?")
		args = append(args, c.Before.UnixMilli())
	}

	if len(where) == 0 {
		return "1 = 1", args
	}

	return strings.Join(where, " AND "), args
}

func (c Condition) OrderBy(column string) string {
	if c.sortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}

func (c Condition) Limit() (int, bool) {
	if c.limit == nil {
		return 0, false
	}
	return *c.limit, true
}

func WithSensorID(sensorID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.SensorID = sensorID
		return c
	}
}

func WithFrom(t time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.From = t
		return c
	}
}

func WithUntil(t time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Until = t
		return c
	}
}

func WithAfter(t time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.After = t
		return c
	}
}

func WithBefore(t time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Before = t
		return c
	}
}

func WithKey(key string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Key = key
		return c
	}
}

func WithRequestType(t int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.RequestType = t
		return c
	}
}

func WithSortDesc(desc bool) ConditionFunc {
	return func(c *Condition) *Condition {
		c.sortDesc = desc
		return c
	}
}

func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.limit = &limit
		return c
	}
}
