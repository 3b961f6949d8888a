// Package legacy implements the row-store backend that holds sensors known only by their
// local identifier. It runs on gorm and works against sqlite or postgres.
package legacy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const kind = storage.Legacy

const defaultBatchSize = 500

type Backend struct {
	db        *gorm.DB
	mu        sync.RWMutex
	batchSize int
	now       func() time.Time
}

func New(connect database.ConnectorFunc) (*Backend, error) {
	impl, err := connect()
	if err != nil {
		return nil, storage.Wrap(kind, "connect", err)
	}

	err = impl.AutoMigrate(&Sensor{}, &Record{}, &LastRecord{}, &Settings{}, &QueuedRequest{}, &Subscription{})
	if err != nil {
		return nil, storage.Wrap(kind, "migrate", err)
	}

	return &Backend{
		db:        impl,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}, nil
}

func (b *Backend) Kind() storage.Kind {
	return kind
}

func (b *Backend) Close() error {
	sqldb, err := b.db.DB()
	if err != nil {
		return storage.Wrap(kind, "close", err)
	}
	return storage.Wrap(kind, "close", sqldb.Close())
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.NotFound(kind, op)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.Wrap(kind, op, errors.Join(storage.ErrAlreadyExists, err))
	}
	return storage.Wrap(kind, op, err)
}

func (b *Backend) Create(ctx context.Context, sensor types.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return storage.InvalidQuery(kind, "create sensor", err.Error())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := newSensor(kind.SensorKey(sensor), sensor)
	return wrap("create sensor", b.db.WithContext(ctx).Create(&m).Error)
}

func (b *Backend) Update(ctx context.Context, sensor types.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return storage.InvalidQuery(kind, "update sensor", err.Error())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := newSensor(kind.SensorKey(sensor), sensor)
	result := b.db.WithContext(ctx).Model(&m).Select("*").Updates(&m)
	if result.Error != nil {
		return wrap("update sensor", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.NotFound(kind, "update sensor")
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, sensor types.Sensor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := b.db.WithContext(ctx).Where("sensor_id = ?", kind.SensorKey(sensor)).Delete(&Sensor{})
	if result.Error != nil {
		return wrap("delete sensor", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.NotFound(kind, "delete sensor")
	}

	return nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]types.Sensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sensors []Sensor
	err := b.db.WithContext(ctx).Order("sensor_id").Find(&sensors).Error
	if err != nil {
		return nil, wrap("read sensors", err)
	}

	return lo.Map(sensors, func(s Sensor, _ int) types.Sensor { return s.toType() }), nil
}

func (b *Backend) ReadOne(ctx context.Context, sensorID string) (types.Sensor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var s Sensor
	err := b.db.WithContext(ctx).Where("sensor_id = ?", sensorID).First(&s).Error
	if err != nil {
		return types.Sensor{}, wrap("read sensor", err)
	}

	return s.toType(), nil
}

func (b *Backend) StoredSensorsCount(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var count int64
	err := b.db.WithContext(ctx).Model(&Sensor{}).Count(&count).Error
	return count, wrap("count sensors", err)
}

func (b *Backend) StoredMeasurementsCount(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var count int64
	err := b.db.WithContext(ctx).Model(&Record{}).Count(&count).Error
	return count, wrap("count records", err)
}

func (b *Backend) CleanupDBSpace(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("vacuum", b.db.WithContext(ctx).Exec("VACUUM").Error)
}

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
	b.mu.RLock()
	defer b.mu.RUnlock()

	where, args := storage.NewCondition(conditions...).Where("created_at")

	var requests []QueuedRequest
	err := b.db.WithContext(ctx).Where(where, args...).Order("created_at ASC, seq ASC").Find(&requests).Error
	if err != nil {
		return nil, wrap("read queued requests", err)
	}

	return lo.Map(requests, func(q QueuedRequest, _ int) types.QueuedCloudRequest { return q.toType() }), nil
}

func (b *Backend) CreateQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) (types.QueuedCloudRequest, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := QueuedRequest{
		ID:         request.ID,
		Key:        request.Key,
		Type:       int(request.Type),
		EnqueuedAt: request.CreatedAt.UnixMilli(),
		Payload:    request.Payload,
		Attempts:   request.Attempts,
	}

	err := b.db.WithContext(ctx).Create(&m).Error
	if err != nil {
		return types.QueuedCloudRequest{}, wrap("create queued request", err)
	}

	return m.toType(), nil
}

func (b *Backend) DeleteQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("delete queued request", b.db.WithContext(ctx).Where("id = ?", request.ID).Delete(&QueuedRequest{}).Error)
}

func (b *Backend) DeleteQueuedRequests(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return wrap("delete queued requests", b.db.WithContext(ctx).Where("1 = 1").Delete(&QueuedRequest{}).Error)
}

func (b *Backend) SaveSubscription(ctx context.Context, subscription types.CloudSensorSubscription) (types.CloudSensorSubscription, error) {
	if subscription.MacID == "" {
		return types.CloudSensorSubscription{}, storage.InvalidQuery(kind, "save subscription", "subscription has no mac id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := newSubscription(subscription)
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	if err != nil {
		return types.CloudSensorSubscription{}, wrap("save subscription", err)
	}

	return m.toType(), nil
}

func (b *Backend) ReadSensorSubscription(ctx context.Context, sensor types.Sensor) (*types.CloudSensorSubscription, error) {
	if !sensor.HasMacID() {
		return nil, storage.InvalidQuery(kind, "read subscription", "sensor has no mac id")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var subs []Subscription
	err := b.db.WithContext(ctx).Where("mac_id = ?", sensor.MacID).Limit(1).Find(&subs).Error
	if err != nil {
		return nil, wrap("read subscription", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	s := subs[0].toType()
	return &s, nil
}

var _ storage.Backend = (*Backend)(nil)
