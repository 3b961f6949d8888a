// Package primary implements the time-indexed backend that holds every sensor with a network
// identifier. It runs on an embedded DuckDB database.
package primary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
)

const kind = storage.Primary

const defaultBatchSize = 500

type Backend struct {
	db        *sql.DB
	mu        sync.RWMutex
	batchSize int
	now       func() time.Time
}

// New opens the DuckDB database file at path, or an in-memory database when path is empty.
func New(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, storage.Wrap(kind, "open", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storage.Wrap(kind, "ping", err)
	}

	b, err := NewWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log := logging.GetLoggerFromContext(ctx)
	log.Info().Str("backend", kind.String()).Str("path", path).Msg("primary storage opened")

	return b, nil
}

// NewWithDB creates the schema on an already opened database.
func NewWithDB(ctx context.Context, db *sql.DB) (*Backend, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, storage.Wrap(kind, "migrate", err)
		}
	}

	return newBackend(db), nil
}

func newBackend(db *sql.DB) *Backend {
	return &Backend{
		db:        db,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sensors (
		sensor_id VARCHAR PRIMARY KEY,
		luid VARCHAR NOT NULL DEFAULT '',
		mac_id VARCHAR NOT NULL,
		name VARCHAR NOT NULL DEFAULT '',
		version BIGINT NOT NULL DEFAULT 0,
		firmware_version VARCHAR NOT NULL DEFAULT '',
		is_connectable BOOLEAN NOT NULL DEFAULT false,
		is_owner BOOLEAN NOT NULL DEFAULT false,
		is_claimed BOOLEAN NOT NULL DEFAULT false,
		is_cloud BOOLEAN NOT NULL DEFAULT false,
		can_share BOOLEAN NOT NULL DEFAULT false,
		owner VARCHAR NOT NULL DEFAULT '',
		owners_plan VARCHAR NOT NULL DEFAULT '',
		shared_to VARCHAR NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		sensor_id VARCHAR NOT NULL,
		ts BIGINT NOT NULL,` + measurementColumnsDDL + `,
		PRIMARY KEY (sensor_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS last_records (
		sensor_id VARCHAR PRIMARY KEY,
		ts BIGINT NOT NULL,` + measurementColumnsDDL + `
	)`,
	`CREATE TABLE IF NOT EXISTS sensor_settings (
		sensor_id VARCHAR PRIMARY KEY,
		temperature_offset DOUBLE,
		temperature_offset_date BIGINT,
		humidity_offset DOUBLE,
		humidity_offset_date BIGINT,
		pressure_offset DOUBLE,
		pressure_offset_date BIGINT,
		display_order VARCHAR NOT NULL DEFAULT '[]',
		default_display_order BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE SEQUENCE IF NOT EXISTS queued_requests_seq`,
	`CREATE TABLE IF NOT EXISTS queued_requests (
		seq BIGINT PRIMARY KEY DEFAULT nextval('queued_requests_seq'),
		id VARCHAR NOT NULL UNIQUE,
		request_key VARCHAR NOT NULL,
		request_type BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		payload BLOB,
		attempts BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queued_key_type_created ON queued_requests (request_key, request_type, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		mac_id VARCHAR PRIMARY KEY,
		subscription_name VARCHAR NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT false,
		max_claims BIGINT NOT NULL DEFAULT 0,
		max_history_days BIGINT NOT NULL DEFAULT 0,
		max_resolution_minutes BIGINT NOT NULL DEFAULT 0,
		max_shares BIGINT NOT NULL DEFAULT 0,
		max_shares_per_sensor BIGINT NOT NULL DEFAULT 0,
		delayed_alert_allowed BOOLEAN NOT NULL DEFAULT false,
		email_alert_allowed BOOLEAN NOT NULL DEFAULT false,
		offline_alert_allowed BOOLEAN NOT NULL DEFAULT false,
		push_alert_allowed BOOLEAN NOT NULL DEFAULT false,
		telegram_alert_allowed BOOLEAN NOT NULL DEFAULT false,
		pdf_export_allowed BOOLEAN NOT NULL DEFAULT false,
		end_at BIGINT
	)`,
}

func (b *Backend) Kind() storage.Kind {
	return kind
}

func (b *Backend) Close() error {
	return storage.Wrap(kind, "close", b.db.Close())
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *duckdb.Error
	if errors.As(err, &de) && de.Type == duckdb.ErrorTypeConstraint {
		return storage.Wrap(kind, op, errors.Join(storage.ErrAlreadyExists, err))
	}

	return storage.Wrap(kind, op, err)
}

func (b *Backend) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

const sensorColumns = `sensor_id, luid, mac_id, name, version, firmware_version, is_connectable, is_owner,
	is_claimed, is_cloud, can_share, owner, owners_plan, shared_to`

func sensorArgs(s types.Sensor) ([]any, error) {
	sharedTo, err := json.Marshal(nonNil(s.SharedTo))
	if err != nil {
		return nil, err
	}

	return []any{
		kind.SensorKey(s), s.LUID, s.MacID, s.Name, int64(s.Version), s.FirmwareVersion, s.IsConnectable, s.IsOwner,
		s.IsClaimed, s.IsCloud, s.CanShare, s.Owner, s.OwnersPlan, string(sharedTo),
	}, nil
}

func scanSensor(row scanner) (types.Sensor, error) {
	var (
		s        types.Sensor
		key      string
		version  int64
		sharedTo string
	)

	err := row.Scan(&key, &s.LUID, &s.MacID, &s.Name, &version, &s.FirmwareVersion, &s.IsConnectable, &s.IsOwner,
		&s.IsClaimed, &s.IsCloud, &s.CanShare, &s.Owner, &s.OwnersPlan, &sharedTo)
	if err != nil {
		return types.Sensor{}, err
	}

	s.Version = int(version)
	if err := json.Unmarshal([]byte(sharedTo), &s.SharedTo); err != nil {
		return types.Sensor{}, err
	}
	if len(s.SharedTo) == 0 {
		s.SharedTo = nil
	}

	return s, nil
}

func (b *Backend) Create(ctx context.Context, sensor types.Sensor) error {
	if !sensor.HasMacID() {
		return storage.InvalidQuery(kind, "create sensor", "sensor has no mac id")
	}

	args, err := sensorArgs(sensor)
	if err != nil {
		return storage.Wrap(kind, "create sensor", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.db.ExecContext(ctx, `INSERT INTO sensors (`+sensorColumns+`) VALUES (`+placeholders(len(args))+`)`, args...)
	return wrap("create sensor", err)
}

func (b *Backend) Update(ctx context.Context, sensor types.Sensor) error {
	if !sensor.HasMacID() {
		return storage.InvalidQuery(kind, "update sensor", "sensor has no mac id")
	}

	args, err := sensorArgs(sensor)
	if err != nil {
		return storage.Wrap(kind, "update sensor", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result, err := b.db.ExecContext(ctx, `UPDATE sensors SET luid = ?, mac_id = ?, name = ?, version = ?, firmware_version = ?,
		is_connectable = ?, is_owner = ?, is_claimed = ?, is_cloud = ?, can_share = ?, owner = ?, owners_plan = ?, shared_to = ?
		WHERE sensor_id = ?`, append(args[1:], args[0])...)
	if err != nil {
		return wrap("update sensor", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound(kind, "update sensor")
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, sensor types.Sensor) error {
	if !sensor.HasMacID() {
		return storage.InvalidQuery(kind, "delete sensor", "sensor has no mac id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result, err := b.db.ExecContext(ctx, `DELETE FROM sensors WHERE sensor_id = ?`, kind.SensorKey(sensor))
	if err != nil {
		return wrap("delete sensor", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound(kind, "delete sensor")
	}

	return nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]types.Sensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx, `SELECT `+sensorColumns+` FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, wrap("read sensors", err)
	}
	defer rows.Close()

	sensors := []types.Sensor{}
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, wrap("read sensors", err)
		}
		sensors = append(sensors, s)
	}

	return sensors, wrap("read sensors", rows.Err())
}

func (b *Backend) ReadOne(ctx context.Context, sensorID string) (types.Sensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	row := b.db.QueryRowContext(ctx, `SELECT `+sensorColumns+` FROM sensors WHERE sensor_id = ?`, sensorID)

	s, err := scanSensor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Sensor{}, storage.NotFound(kind, "read sensor")
	}

	return s, wrap("read sensor", err)
}

func (b *Backend) StoredSensorsCount(ctx context.Context) (int64, error) {
	return b.count(ctx, "count sensors", `SELECT count(*) FROM sensors`)
}

func (b *Backend) StoredMeasurementsCount(ctx context.Context) (int64, error) {
	return b.count(ctx, "count records", `SELECT count(*) FROM records`)
}

func (b *Backend) count(ctx context.Context, op, query string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int64
	err := b.db.QueryRowContext(ctx, query).Scan(&n)
	return n, wrap(op, err)
}

func (b *Backend) CleanupDBSpace(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `CHECKPOINT`)
	return wrap("checkpoint", err)
}

const queuedColumns = `id, request_key, request_type, created_at, payload, attempts`

func (b *Backend) ReadQueuedRequests(ctx context.Context) ([]types.QueuedCloudRequest, error) {
	return b.queryQueued(ctx)
}

func (b *Backend) ReadQueuedRequestsForKey(ctx context.Context, key string) ([]types.QueuedCloudRequest, error) {
	return b.queryQueued(ctx, storage.WithKey(key))
}

func (b *Backend) ReadQueuedRequestsForType(ctx context.Context, t types.QueuedRequestType) ([]types.QueuedCloudRequest, error) {
	return b.queryQueued(ctx, storage.WithRequestType(int(t)))
}

func (b *Backend) queryQueued(ctx context.Context, conditions ...storage.ConditionFunc) ([]types.QueuedCloudRequest, error) {
	where, args := storage.NewCondition(conditions...).Where("created_at")

	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx, `SELECT `+queuedColumns+` FROM queued_requests WHERE `+where+` ORDER BY created_at ASC, seq ASC`, args...)
	if err != nil {
		return nil, wrap("read queued requests", err)
	}
	defer rows.Close()

	requests := []types.QueuedCloudRequest{}
	for rows.Next() {
		var (
			q         types.QueuedCloudRequest
			t         int64
			createdAt int64
			attempts  int64
		)
		if err := rows.Scan(&q.ID, &q.Key, &t, &createdAt, &q.Payload, &attempts); err != nil {
			return nil, wrap("read queued requests", err)
		}
		q.Type = types.QueuedRequestType(t)
		q.CreatedAt = time.UnixMilli(createdAt).UTC()
		q.Attempts = int(attempts)
		requests = append(requests, q)
	}

	return requests, wrap("read queued requests", rows.Err())
}

func (b *Backend) CreateQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) (types.QueuedCloudRequest, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = b.now()
	}
	request.CreatedAt = time.UnixMilli(request.CreatedAt.UnixMilli()).UTC()

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `INSERT INTO queued_requests (`+queuedColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		request.ID, request.Key, int64(request.Type), request.CreatedAt.UnixMilli(), request.Payload, int64(request.Attempts))
	if err != nil {
		return types.QueuedCloudRequest{}, wrap("create queued request", err)
	}

	return request, nil
}

func (b *Backend) DeleteQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM queued_requests WHERE id = ?`, request.ID)
	return wrap("delete queued request", err)
}

func (b *Backend) DeleteQueuedRequests(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `DELETE FROM queued_requests`)
	return wrap("delete queued requests", err)
}

const subscriptionColumns = `mac_id, subscription_name, is_active, max_claims, max_history_days, max_resolution_minutes,
	max_shares, max_shares_per_sensor, delayed_alert_allowed, email_alert_allowed, offline_alert_allowed,
	push_alert_allowed, telegram_alert_allowed, pdf_export_allowed, end_at`

func (b *Backend) SaveSubscription(ctx context.Context, s types.CloudSensorSubscription) (types.CloudSensorSubscription, error) {
	if s.MacID == "" {
		return types.CloudSensorSubscription{}, storage.InvalidQuery(kind, "save subscription", "subscription has no mac id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (`+placeholders(15)+`)
		ON CONFLICT (mac_id) DO UPDATE SET
			subscription_name = EXCLUDED.subscription_name,
			is_active = EXCLUDED.is_active,
			max_claims = EXCLUDED.max_claims,
			max_history_days = EXCLUDED.max_history_days,
			max_resolution_minutes = EXCLUDED.max_resolution_minutes,
			max_shares = EXCLUDED.max_shares,
			max_shares_per_sensor = EXCLUDED.max_shares_per_sensor,
			delayed_alert_allowed = EXCLUDED.delayed_alert_allowed,
			email_alert_allowed = EXCLUDED.email_alert_allowed,
			offline_alert_allowed = EXCLUDED.offline_alert_allowed,
			push_alert_allowed = EXCLUDED.push_alert_allowed,
			telegram_alert_allowed = EXCLUDED.telegram_alert_allowed,
			pdf_export_allowed = EXCLUDED.pdf_export_allowed,
			end_at = EXCLUDED.end_at`,
		s.MacID, s.SubscriptionName, s.IsActive, int64(s.MaxClaims), int64(s.MaxHistoryDays), int64(s.MaxResolutionMinutes),
		int64(s.MaxShares), int64(s.MaxSharesPerSensor), s.DelayedAlertAllowed, s.EmailAlertAllowed, s.OfflineAlertAllowed,
		s.PushAlertAllowed, s.TelegramAlertAllowed, s.PDFExportAllowed, nullTime(s.EndAt))
	if err != nil {
		return types.CloudSensorSubscription{}, wrap("save subscription", err)
	}

	return s, nil
}

func (b *Backend) ReadSensorSubscription(ctx context.Context, sensor types.Sensor) (*types.CloudSensorSubscription, error) {
	if !sensor.HasMacID() {
		return nil, storage.InvalidQuery(kind, "read subscription", "sensor has no mac id")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var (
		s                                                    types.CloudSensorSubscription
		claims, history, resolution, shares, sharesPerSensor int64
		endAt                                                sql.NullInt64
	)

	err := b.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE mac_id = ?`, sensor.MacID).Scan(
		&s.MacID, &s.SubscriptionName, &s.IsActive, &claims, &history, &resolution,
		&shares, &sharesPerSensor, &s.DelayedAlertAllowed, &s.EmailAlertAllowed, &s.OfflineAlertAllowed,
		&s.PushAlertAllowed, &s.TelegramAlertAllowed, &s.PDFExportAllowed, &endAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("read subscription", err)
	}

	s.MaxClaims = int(claims)
	s.MaxHistoryDays = int(history)
	s.MaxResolutionMinutes = int(resolution)
	s.MaxShares = int(shares)
	s.MaxSharesPerSensor = int(sharesPerSensor)
	s.EndAt = timeOrNil(endAt)

	return &s, nil
}

var _ storage.Backend = (*Backend)(nil)
