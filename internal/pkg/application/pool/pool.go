// Package pool is the write side of sensor storage. It routes every write to the backend
// that owns the sensor and keeps local state consistent with it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/application/routing"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("iot-sensor-storage/pool")

var ErrBackendMismatch = errors.New("sensor is stored in the other backend")

type PersistencePool interface {
	Create(ctx context.Context, sensor types.Sensor) error
	Update(ctx context.Context, sensor types.Sensor) error
	Delete(ctx context.Context, sensor types.Sensor) (*CleanupResult, error)

	CreateRecord(ctx context.Context, record types.SensorRecord) error
	CreateRecords(ctx context.Context, records []types.SensorRecord) error
	CreateLast(ctx context.Context, record types.SensorRecord) error
	UpdateLast(ctx context.Context, record types.SensorRecord) error

	DeleteAllRecords(ctx context.Context, sensorID string) *CleanupResult
	DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) *CleanupResult

	UpdateOffsetCorrection(ctx context.Context, t types.OffsetCorrectionType, value *float64, sensor types.Sensor, lastOriginalRecord *types.SensorRecord) (types.SensorSettings, error)
	UpdateDisplaySettings(ctx context.Context, sensor types.Sensor, displayOrder []string, defaultDisplayOrder bool) (types.SensorSettings, error)
	DeleteOffsetCorrection(ctx context.Context, sensor types.Sensor) error
	SaveSettings(ctx context.Context, sensor types.Sensor, settings types.SensorSettings) (types.SensorSettings, error)
	SaveSubscription(ctx context.Context, subscription types.CloudSensorSubscription) (types.CloudSensorSubscription, error)

	CleanupDBSpace(ctx context.Context) *CleanupResult
	Logout(ctx context.Context) (*CleanupResult, error)
	Migrate(ctx context.Context, sensor types.Sensor) error
}

//go:generate moq -rm -out localsettings_mock.go . LocalSettings

// LocalSettings is the process-wide local state that follows sensor writes.
type LocalSettings interface {
	AppendSortOrder(sensorID string) error
	RemoveSortOrder(sensorID string) error
	ReplaceSortOrder(oldID, newID string) error
	SetKeepConnection(sensorID string, keep bool) error
	ClearSensorState(sensorID string) error
	ClearGlobalState() error
}

//go:generate moq -rm -out imagestore_mock.go . ImageStore

type ImageStore interface {
	DeleteCustomBackground(sensorID string) error
}

//go:generate moq -rm -out publisher_mock.go . Publisher

type Publisher interface {
	Publish(ctx context.Context, message types.Message) error
}

type Option func(*pool)

func WithPublisher(p Publisher) Option {
	return func(pl *pool) {
		pl.publisher = p
	}
}

func WithMetrics(m *metrics.StorageMetrics) Option {
	return func(pl *pool) {
		pl.metrics = m
	}
}

// WithFanOut bounds the number of concurrent deletes during logout. Values below 2 are ignored.
func WithFanOut(n int) Option {
	return func(pl *pool) {
		if n > 1 {
			pl.fanOut = n
		}
	}
}

type pool struct {
	legacy    storage.Backend
	primary   storage.Backend
	local     LocalSettings
	images    ImageStore
	publisher Publisher
	metrics   *metrics.StorageMetrics
	fanOut    int
	now       func() time.Time
}

func New(legacy, primary storage.Backend, local LocalSettings, images ImageStore, options ...Option) PersistencePool {
	p := &pool{
		legacy:  legacy,
		primary: primary,
		local:   local,
		images:  images,
		fanOut:  4,
		now:     time.Now,
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

func (p *pool) backend(k storage.Kind) storage.Backend {
	if k == storage.Primary {
		return p.primary
	}
	return p.legacy
}

// Create stores the sensor in its backend and appends it to the local sort order. The sort
// order is not updated when the backend write fails.
func (p *pool) Create(ctx context.Context, sensor types.Sensor) error {
	k := routing.For(sensor)
	ctx, log := logging.WithSensor(ctx, sensor.ID())

	err := p.backend(k).Create(ctx, sensor)
	p.metrics.Write(k.String(), "create", err)
	if err != nil {
		return err
	}

	if err := p.local.AppendSortOrder(sensor.ID()); err != nil {
		log.Error().Err(err).Msg("failed to append sensor to sort order")
	}

	p.publish(ctx, &types.SensorCreated{SensorID: sensor.ID(), Backend: k.String(), Timestamp: p.now().UTC()})

	return nil
}

// Update routes on the identifiers the sensor carries now. A sensor that gained a network
// identifier after it was created is still stored in legacy until Migrate moves it, so the
// update reports ErrBackendMismatch.
func (p *pool) Update(ctx context.Context, sensor types.Sensor) error {
	k := routing.For(sensor)
	ctx, log := logging.WithSensor(ctx, sensor.ID())

	err := p.backend(k).Update(ctx, sensor)
	p.metrics.Write(k.String(), "update", err)

	if !storage.IsNotFound(err) {
		return err
	}

	other := routing.Other(k)
	key := other.SensorKey(sensor)
	if key == "" {
		return err
	}

	if _, readErr := p.backend(other).ReadOne(ctx, key); readErr != nil {
		return err
	}

	p.metrics.Mismatch()
	log.Warn().Str("routed", k.String()).Str("found", other.String()).Msg("backend mismatch")

	return fmt.Errorf("%w: routed to %s, found in %s: %w", ErrBackendMismatch, k, other, err)
}

// Delete removes the sensor from its backend and then runs every cleanup step, continuing past
// failures. Nothing is cleaned up when the sensor itself could not be deleted.
func (p *pool) Delete(ctx context.Context, sensor types.Sensor) (*CleanupResult, error) {
	k := routing.For(sensor)
	b := p.backend(k)
	id := sensor.ID()
	ctx, log := logging.WithSensor(ctx, id)

	ctx, span := tracing.Start(ctx, tracer, "delete-sensor", id)

	err := b.Delete(ctx, sensor)
	p.metrics.Write(k.String(), "delete", err)
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}

	result := newResult("delete", id)
	key := k.SensorKey(sensor)

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepRecords, func() error { return b.DeleteAllRecords(ctx, key) }},
		{StepSettings, func() error { return b.DeleteSensorSettings(ctx, sensor) }},
		{StepLastRecord, func() error { return b.DeleteLast(ctx, key) }},
		{StepBackgroundImage, func() error { return p.images.DeleteCustomBackground(id) }},
		{StepKeepConnection, func() error { return p.local.SetKeepConnection(id, false) }},
		{StepSortOrder, func() error { return p.local.RemoveSortOrder(id) }},
	}

	for _, step := range steps {
		err := step.fn()
		if err != nil {
			p.metrics.CleanupFailed(step.name)
			log.Warn().Err(err).Str("step", step.name).Msg("cleanup step failed")
		}
		result.record(step.name, err)
	}

	p.publish(ctx, &types.SensorDeleted{SensorID: id, Backend: k.String(), Failed: result.failedSteps(), Timestamp: p.now().UTC()})
	tracing.End(span, result.Err())

	return result, nil
}

func (p *pool) CreateRecord(ctx context.Context, record types.SensorRecord) error {
	k := routing.ForRecord(record)
	err := p.backend(k).CreateRecord(ctx, record)
	p.metrics.Write(k.String(), "create record", err)
	return err
}

// CreateRecords splits the batch by owning backend and writes both parts concurrently. The call
// fails if either part fails; rows committed by the other backend are kept.
func (p *pool) CreateRecords(ctx context.Context, records []types.SensorRecord) (err error) {
	ctx, span := tracing.Start(ctx, tracer, "create-records", "")
	defer func() { tracing.End(span, err) }()

	legacyBatch, primaryBatch := routing.Split(records)

	var g errgroup.Group
	var legacyErr, primaryErr error

	if len(legacyBatch) > 0 {
		g.Go(func() error {
			legacyErr = p.legacy.CreateRecords(ctx, legacyBatch)
			p.metrics.Write(storage.Legacy.String(), "create records", legacyErr)
			return legacyErr
		})
	}

	if len(primaryBatch) > 0 {
		g.Go(func() error {
			primaryErr = p.primary.CreateRecords(ctx, primaryBatch)
			p.metrics.Write(storage.Primary.String(), "create records", primaryErr)
			return primaryErr
		})
	}

	if g.Wait() == nil {
		return nil
	}

	return errors.Join(legacyErr, primaryErr)
}

func (p *pool) CreateLast(ctx context.Context, record types.SensorRecord) error {
	k := routing.ForRecord(record)
	err := p.backend(k).CreateLast(ctx, record)
	p.metrics.Write(k.String(), "create last", err)
	return err
}

func (p *pool) UpdateLast(ctx context.Context, record types.SensorRecord) error {
	k := routing.ForRecord(record)
	err := p.backend(k).UpdateLast(ctx, record)
	p.metrics.Write(k.String(), "update last", err)
	return err
}

// DeleteAllRecords asks both backends to delete, since the caller only knows the sensor id.
// Both calls always run; failures are reported in the result.
func (p *pool) DeleteAllRecords(ctx context.Context, sensorID string) *CleanupResult {
	return p.fanOutBackends(ctx, "delete records", sensorID, func(b storage.Backend) error {
		return b.DeleteAllRecords(ctx, sensorID)
	})
}

func (p *pool) DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) *CleanupResult {
	return p.fanOutBackends(ctx, "delete records before", sensorID, func(b storage.Backend) error {
		return b.DeleteAllRecordsBefore(ctx, sensorID, before)
	})
}

func (p *pool) CleanupDBSpace(ctx context.Context) *CleanupResult {
	return p.fanOutBackends(ctx, "cleanup db space", "", func(b storage.Backend) error {
		return b.CleanupDBSpace(ctx)
	})
}

func (p *pool) fanOutBackends(ctx context.Context, op, sensorID string, fn func(storage.Backend) error) *CleanupResult {
	result := newResult(op, sensorID)

	var g errgroup.Group
	for _, b := range []storage.Backend{p.legacy, p.primary} {
		g.Go(func() error {
			err := fn(b)
			p.metrics.Write(b.Kind().String(), op, err)
			result.record(b.Kind().String(), err)
			return nil
		})
	}
	g.Wait()

	if err := result.Err(); err != nil {
		log := logging.GetLoggerFromContext(ctx)
		log.Warn().Err(err).Str("op", op).Msg("fan-out partially failed")
	}

	return result
}

func (p *pool) UpdateOffsetCorrection(ctx context.Context, t types.OffsetCorrectionType, value *float64, sensor types.Sensor, lastOriginalRecord *types.SensorRecord) (types.SensorSettings, error) {
	k := routing.For(sensor)
	s, err := p.backend(k).UpdateOffsetCorrection(ctx, t, value, sensor, lastOriginalRecord)
	p.metrics.Write(k.String(), "update offset", err)
	return s, err
}

func (p *pool) UpdateDisplaySettings(ctx context.Context, sensor types.Sensor, displayOrder []string, defaultDisplayOrder bool) (types.SensorSettings, error) {
	k := routing.For(sensor)
	s, err := p.backend(k).UpdateDisplaySettings(ctx, sensor, displayOrder, defaultDisplayOrder)
	p.metrics.Write(k.String(), "update display settings", err)
	return s, err
}

func (p *pool) DeleteOffsetCorrection(ctx context.Context, sensor types.Sensor) error {
	k := routing.For(sensor)
	err := p.backend(k).DeleteOffsetCorrection(ctx, sensor)
	p.metrics.Write(k.String(), "delete offset", err)
	return err
}

func (p *pool) SaveSettings(ctx context.Context, sensor types.Sensor, settings types.SensorSettings) (types.SensorSettings, error) {
	k := routing.For(sensor)
	settings.SensorID = k.SensorKey(sensor)

	s, err := p.backend(k).SaveSettings(ctx, settings)
	p.metrics.Write(k.String(), "save settings", err)
	return s, err
}

// SaveSubscription always writes to primary since subscriptions only exist for cloud sensors.
func (p *pool) SaveSubscription(ctx context.Context, subscription types.CloudSensorSubscription) (types.CloudSensorSubscription, error) {
	s, err := p.primary.SaveSubscription(ctx, subscription)
	p.metrics.Write(storage.Primary.String(), "save subscription", err)
	return s, err
}

func (p *pool) publish(ctx context.Context, message types.Message) {
	if p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, message); err != nil {
		log := logging.GetLoggerFromContext(ctx)
		log.Error().Err(err).Str("topic", message.TopicName()).Msg("failed to publish")
	}
}
