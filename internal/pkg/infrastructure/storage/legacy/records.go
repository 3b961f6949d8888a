package legacy

import (
	"context"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/downsample"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (b *Backend) CreateRecord(ctx context.Context, record types.SensorRecord) error {
	key := kind.RecordKey(record)
	if key == "" {
		return storage.InvalidQuery(kind, "create record", "record has no sensor identifier")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	row := newRecord(key, record)
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return wrap("create record", err)
}

// CreateRecords inserts the batch in a single transaction. Rows that already exist
// for the same sensor and timestamp are skipped so that a retried batch is harmless.
func (b *Backend) CreateRecords(ctx context.Context, records []types.SensorRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]Record, 0, len(records))
	for _, r := range records {
		key := kind.RecordKey(r)
		if key == "" {
			return storage.InvalidQuery(kind, "create records", "record has no sensor identifier")
		}
		rows = append(rows, newRecord(key, r))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chunk := range lo.Chunk(rows, b.batchSize) {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	return wrap("create records", err)
}

func (b *Backend) CreateLast(ctx context.Context, record types.SensorRecord) error {
	return b.upsertLast(ctx, "create last", record)
}

func (b *Backend) UpdateLast(ctx context.Context, record types.SensorRecord) error {
	return b.upsertLast(ctx, "update last", record)
}

func (b *Backend) upsertLast(ctx context.Context, op string, record types.SensorRecord) error {
	key := kind.RecordKey(record)
	if key == "" {
		return storage.InvalidQuery(kind, op, "record has no sensor identifier")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	row := newLastRecord(key, record)
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	return wrap(op, err)
}

func (b *Backend) DeleteLast(ctx context.Context, sensorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("delete last", b.db.WithContext(ctx).Where("sensor_id = ?", sensorID).Delete(&LastRecord{}).Error)
}

func (b *Backend) ReadRecords(ctx context.Context, sensorID string) ([]types.SensorRecord, error) {
	return b.query(ctx, "read records", storage.WithSensorID(sensorID))
}

func (b *Backend) ReadRecordsAfter(ctx context.Context, sensorID string, after time.Time) ([]types.SensorRecord, error) {
	return b.query(ctx, "read records after", storage.WithSensorID(sensorID), storage.WithAfter(after))
}

func (b *Backend) ReadInterval(ctx context.Context, sensorID string, after time.Time, interval time.Duration) ([]types.SensorRecord, error) {
	records, err := b.query(ctx, "read interval", storage.WithSensorID(sensorID), storage.WithAfter(after))
	if err != nil {
		return nil, err
	}
	return downsample.EveryInterval(records, interval), nil
}

func (b *Backend) ReadLastWindow(ctx context.Context, sensorID string, window time.Duration) ([]types.SensorRecord, error) {
	now := b.now()
	return b.query(ctx, "read last window", storage.WithSensorID(sensorID), storage.WithFrom(now.Add(-window)), storage.WithUntil(now))
}

func (b *Backend) ReadLast(ctx context.Context, sensorID string) (*types.SensorRecord, error) {
	records, err := b.query(ctx, "read last", storage.WithSensorID(sensorID), storage.WithSortDesc(true), storage.WithLimit(1))
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func (b *Backend) ReadLatest(ctx context.Context, sensorID string) (*types.SensorRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var rows []LastRecord
	err := b.db.WithContext(ctx).Where("sensor_id = ?", sensorID).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, wrap("read latest", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0].toType()
	return &r, nil
}

// ReadDownsampled scans the (sensor_id, ts) index for the plan range and thins the result in memory.
func (b *Backend) ReadDownsampled(ctx context.Context, sensorID string, after time.Time, intervalMinutes int, pick float64) ([]types.SensorRecord, error) {
	plan, err := downsample.NewPlan(after, b.now(), intervalMinutes, pick)
	if err != nil {
		return nil, storage.InvalidQuery(kind, "read downsampled", err.Error())
	}

	if plan.Empty() {
		return []types.SensorRecord{}, nil
	}

	records, err := b.query(ctx, "read downsampled", storage.WithSensorID(sensorID), storage.WithFrom(plan.From), storage.WithUntil(plan.Until))
	if err != nil {
		return nil, err
	}

	return plan.Select(records), nil
}

func (b *Backend) DeleteAllRecords(ctx context.Context, sensorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("delete records", b.db.WithContext(ctx).Where("sensor_id = ?", sensorID).Delete(&Record{}).Error)
}

func (b *Backend) DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) error {
	where, args := storage.NewCondition(storage.WithSensorID(sensorID), storage.WithBefore(before)).Where("ts")

	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("delete records before", b.db.WithContext(ctx).Where(where, args...).Delete(&Record{}).Error)
}

func (b *Backend) query(ctx context.Context, op string, conditions ...storage.ConditionFunc) ([]types.SensorRecord, error) {
	c := storage.NewCondition(conditions...)
	where, args := c.Where("ts")

	b.mu.RLock()
	defer b.mu.RUnlock()

	q := b.db.WithContext(ctx).Where(where, args...).Order(c.OrderBy("ts"))
	if limit, ok := c.Limit(); ok {
		q = q.Limit(limit)
	}

	var rows []Record
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap(op, err)
	}

	return lo.Map(rows, func(r Record, _ int) types.SensorRecord { return r.toType() }), nil
}
