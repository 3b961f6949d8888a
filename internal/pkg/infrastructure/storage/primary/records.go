package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/downsample"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
)

const measurementColumnsDDL = `
		luid VARCHAR NOT NULL DEFAULT '',
		mac_id VARCHAR NOT NULL DEFAULT '',
		source VARCHAR NOT NULL DEFAULT '',
		rssi BIGINT,
		temperature DOUBLE,
		humidity DOUBLE,
		pressure DOUBLE,
		acceleration_x DOUBLE,
		acceleration_y DOUBLE,
		acceleration_z DOUBLE,
		voltage DOUBLE,
		movement_counter BIGINT,
		measurement_sequence_number BIGINT,
		tx_power BIGINT,
		temperature_offset DOUBLE NOT NULL DEFAULT 0,
		humidity_offset DOUBLE NOT NULL DEFAULT 0,
		pressure_offset DOUBLE NOT NULL DEFAULT 0`

var recordColumnNames = []string{
	"sensor_id", "ts", "luid", "mac_id", "source", "rssi", "temperature", "humidity", "pressure",
	"acceleration_x", "acceleration_y", "acceleration_z", "voltage", "movement_counter",
	"measurement_sequence_number", "tx_power", "temperature_offset", "humidity_offset", "pressure_offset",
}

var recordColumns = strings.Join(recordColumnNames, ", ")

func recordArgs(key string, r types.SensorRecord) []any {
	var ax, ay, az any
	if r.Acceleration != nil {
		ax, ay, az = r.Acceleration.X, r.Acceleration.Y, r.Acceleration.Z
	}

	return []any{
		key, r.Timestamp.UnixMilli(), r.LUID, r.MacID, string(r.Source), nullInt(r.RSSI), nullFloat(r.Temperature),
		nullFloat(r.Humidity), nullFloat(r.Pressure), ax, ay, az, nullFloat(r.Voltage), nullInt(r.MovementCounter),
		nullInt(r.MeasurementSequenceNumber), nullInt(r.TxPower), r.TemperatureOffset, r.HumidityOffset, r.PressureOffset,
	}
}

func scanRecord(row scanner) (types.SensorRecord, error) {
	var (
		r                            types.SensorRecord
		key, source                  string
		ts                           int64
		rssi, movement, seq, txPower sql.NullInt64
		temperature, humidity        sql.NullFloat64
		pressure, voltage            sql.NullFloat64
		ax, ay, az                   sql.NullFloat64
	)

	err := row.Scan(&key, &ts, &r.LUID, &r.MacID, &source, &rssi, &temperature, &humidity, &pressure,
		&ax, &ay, &az, &voltage, &movement, &seq, &txPower, &r.TemperatureOffset, &r.HumidityOffset, &r.PressureOffset)
	if err != nil {
		return types.SensorRecord{}, err
	}

	r.Timestamp = time.UnixMilli(ts).UTC()
	r.Source = types.RecordSource(source)
	r.RSSI = intOrNil(rssi)
	r.Temperature = floatOrNil(temperature)
	r.Humidity = floatOrNil(humidity)
	r.Pressure = floatOrNil(pressure)
	r.Voltage = floatOrNil(voltage)
	r.MovementCounter = intOrNil(movement)
	r.MeasurementSequenceNumber = intOrNil(seq)
	r.TxPower = intOrNil(txPower)

	if ax.Valid && ay.Valid && az.Valid {
		r.Acceleration = &types.Acceleration{X: ax.Float64, Y: ay.Float64, Z: az.Float64}
	}

	return r, nil
}

func recordKey(op string, r types.SensorRecord) (string, error) {
	if !r.HasMacID() {
		return "", storage.InvalidQuery(kind, op, "record has no mac id")
	}
	return kind.RecordKey(r), nil
}

func (b *Backend) CreateRecord(ctx context.Context, record types.SensorRecord) error {
	return b.CreateRecords(ctx, []types.SensorRecord{record})
}

// CreateRecords inserts the batch in one transaction using multi-row statements of at most
// batchSize rows. Rows already present for the same sensor and timestamp are skipped, and so are
// repeats within the batch; the first occurrence wins.
func (b *Backend) CreateRecords(ctx context.Context, records []types.SensorRecord) error {
	if len(records) == 0 {
		return nil
	}

	// ON CONFLICT does not cover two conflicting rows in the same statement
	records = lo.UniqBy(records, func(r types.SensorRecord) string { return r.ID() })

	args := make([][]any, 0, len(records))
	for _, r := range records {
		key, err := recordKey("create records", r)
		if err != nil {
			return err
		}
		args = append(args, recordArgs(key, r))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.transaction(ctx, func(tx *sql.Tx) error {
		for _, chunk := range lo.Chunk(args, b.batchSize) {
			values := make([]string, 0, len(chunk))
			flat := make([]any, 0, len(chunk)*len(recordColumnNames))

			for _, a := range chunk {
				values = append(values, "("+placeholders(len(a))+")")
				flat = append(flat, a...)
			}

			query := `INSERT INTO records (` + recordColumns + `) VALUES ` + strings.Join(values, ", ") + ` ON CONFLICT DO NOTHING`
			if _, err := tx.ExecContext(ctx, query, flat...); err != nil {
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
	key, err := recordKey(op, record)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.db.ExecContext(ctx, upsertLastQuery, recordArgs(key, record)...)
	return wrap(op, err)
}

var upsertLastQuery = func() string {
	updates := lo.Map(recordColumnNames[1:], func(c string, _ int) string {
		return c + " = EXCLUDED." + c
	})

	return `INSERT INTO last_records (` + recordColumns + `) VALUES (` + placeholders(len(recordColumnNames)) + `)
		ON CONFLICT (sensor_id) DO UPDATE SET ` + strings.Join(updates, ", ")
}()

func (b *Backend) DeleteLast(ctx context.Context, sensorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM last_records WHERE sensor_id = ?`, sensorID)
	return wrap("delete last", err)
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

	r, err := scanRecord(b.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM last_records WHERE sensor_id = ?`, sensorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("read latest", err)
	}

	return &r, nil
}

// ReadDownsampled evaluates the bucket plan inside the engine. Every row gets its bucket index,
// clamped so the last bucket is closed at the upper bound, and only the earliest row of each
// bucket is kept.
func (b *Backend) ReadDownsampled(ctx context.Context, sensorID string, after time.Time, intervalMinutes int, pick float64) ([]types.SensorRecord, error) {
	plan, err := downsample.NewPlan(after, b.now(), intervalMinutes, pick)
	if err != nil {
		return nil, storage.InvalidQuery(kind, "read downsampled", err.Error())
	}

	if plan.Empty() {
		return []types.SensorRecord{}, nil
	}

	where, args := storage.NewCondition(
		storage.WithSensorID(sensorID), storage.WithFrom(plan.From), storage.WithUntil(plan.Until),
	).Where("ts")

	args = append(args, plan.From.UnixMilli(), plan.Width.Milliseconds(), plan.Buckets()-1)

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + `
		QUALIFY row_number() OVER (
			PARTITION BY least((ts - CAST(? AS BIGINT)) // CAST(? AS BIGINT), CAST(? AS BIGINT))
			ORDER BY ts
		) = 1
		ORDER BY ts ASC`

	return b.queryRecords(ctx, "read downsampled", query, args...)
}

func (b *Backend) DeleteAllRecords(ctx context.Context, sensorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE sensor_id = ?`, sensorID)
	return wrap("delete records", err)
}

func (b *Backend) DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) error {
	where, args := storage.NewCondition(storage.WithSensorID(sensorID), storage.WithBefore(before)).Where("ts")

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE `+where, args...)
	return wrap("delete records before", err)
}

func (b *Backend) query(ctx context.Context, op string, conditions ...storage.ConditionFunc) ([]types.SensorRecord, error) {
	c := storage.NewCondition(conditions...)
	where, args := c.Where("ts")

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY ` + c.OrderBy("ts")
	if limit, ok := c.Limit(); ok {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	return b.queryRecords(ctx, op, query, args...)
}

func (b *Backend) queryRecords(ctx context.Context, op, query string, args ...any) ([]types.SensorRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	records := []types.SensorRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		records = append(records, r)
	}

	return records, wrap(op, rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func intOrNil(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatOrNil(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
