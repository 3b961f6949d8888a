// Package coordinator provides the read side of sensor storage. Callers see a single
// logical store regardless of which backend holds a sensor.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
)

// ReadError wraps a failed delegated read. The backend error is kept as the cause.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("coordinator: %s: %s", e.Op, e.Err.Error())
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type StorageCoordinator interface {
	ReadOne(ctx context.Context, sensorID string) (types.Sensor, error)
	ReadAll(ctx context.Context) ([]types.Sensor, error)

	ClaimedSensorsCount(ctx context.Context) (int, error)
	OfflineSensorsCount(ctx context.Context) (int, error)
	StoredSensorsCount(ctx context.Context) (int64, error)
	StoredMeasurementsCount(ctx context.Context) (int64, error)

	Read(ctx context.Context, sensorID string, after time.Time, interval time.Duration) ([]types.SensorRecord, error)
	ReadAllRecords(ctx context.Context, sensorID string, after time.Time) ([]types.SensorRecord, error)
	ReadLastWindow(ctx context.Context, sensorID string, window time.Duration) ([]types.SensorRecord, error)
	ReadDownsampled(ctx context.Context, sensorID string, after time.Time, intervalMinutes int, pick float64) ([]types.SensorRecord, error)
	ReadLast(ctx context.Context, sensor types.Sensor) (*types.SensorRecord, error)
	ReadLatest(ctx context.Context, sensor types.Sensor) (*types.SensorRecord, error)

	ReadSensorSettings(ctx context.Context, sensor types.Sensor) (*types.SensorSettings, error)
	ReadSensorSubscription(ctx context.Context, sensor types.Sensor) (*types.CloudSensorSubscription, error)
}

type coordinator struct {
	legacy  storage.Backend
	primary storage.Backend
	debug   bool
}

// New returns a coordinator over both backends. In debug mode guard violations are logged as errors.
func New(legacy, primary storage.Backend, debug bool) StorageCoordinator {
	return &coordinator{
		legacy:  legacy,
		primary: primary,
		debug:   debug,
	}
}

// ReadOne only consults the primary backend. Sensors that live in legacy storage are reported as not found.
func (c *coordinator) ReadOne(ctx context.Context, sensorID string) (types.Sensor, error) {
	if err := c.guardID(ctx, "read one", sensorID); err != nil {
		return types.Sensor{}, err
	}

	s, err := c.primary.ReadOne(ctx, sensorID)
	if err != nil {
		if storage.IsNotFound(err) {
			log := logging.GetLoggerFromContext(ctx)
			log.Debug().Str("sensor_id", sensorID).Msg("sensor not in primary storage, legacy storage is not searched")
		}
		return types.Sensor{}, &ReadError{Op: "read one", Err: err}
	}

	return s, nil
}

func (c *coordinator) ReadAll(ctx context.Context) ([]types.Sensor, error) {
	legacy, err := c.legacy.ReadAll(ctx)
	if err != nil {
		return nil, &ReadError{Op: "read all", Err: err}
	}

	primary, err := c.primary.ReadAll(ctx)
	if err != nil {
		return nil, &ReadError{Op: "read all", Err: err}
	}

	return append(legacy, primary...), nil
}

func (c *coordinator) ClaimedSensorsCount(ctx context.Context) (int, error) {
	sensors, err := c.ReadAll(ctx)
	if err != nil {
		return 0, err
	}

	return lo.CountBy(sensors, func(s types.Sensor) bool {
		return s.IsClaimed && s.IsOwner
	}), nil
}

func (c *coordinator) OfflineSensorsCount(ctx context.Context) (int, error) {
	sensors, err := c.ReadAll(ctx)
	if err != nil {
		return 0, err
	}

	return lo.CountBy(sensors, func(s types.Sensor) bool {
		return !s.IsCloud
	}), nil
}

func (c *coordinator) StoredSensorsCount(ctx context.Context) (int64, error) {
	return c.sum(ctx, "stored sensors count", storage.Backend.StoredSensorsCount)
}

func (c *coordinator) StoredMeasurementsCount(ctx context.Context) (int64, error) {
	return c.sum(ctx, "stored measurements count", storage.Backend.StoredMeasurementsCount)
}

func (c *coordinator) sum(ctx context.Context, op string, count func(storage.Backend, context.Context) (int64, error)) (int64, error) {
	var total int64

	for _, b := range []storage.Backend{c.legacy, c.primary} {
		n, err := count(b, ctx)
		if err != nil {
			return 0, &ReadError{Op: op, Err: err}
		}
		total += n
	}

	return total, nil
}

func (c *coordinator) Read(ctx context.Context, sensorID string, after time.Time, interval time.Duration) ([]types.SensorRecord, error) {
	if err := c.guardID(ctx, "read", sensorID); err != nil {
		return nil, err
	}

	records, err := c.primary.ReadInterval(ctx, sensorID, after, interval)
	return records, wrap("read", err)
}

func (c *coordinator) ReadAllRecords(ctx context.Context, sensorID string, after time.Time) ([]types.SensorRecord, error) {
	if err := c.guardID(ctx, "read all records", sensorID); err != nil {
		return nil, err
	}

	records, err := c.primary.ReadRecordsAfter(ctx, sensorID, after)
	return records, wrap("read all records", err)
}

func (c *coordinator) ReadLastWindow(ctx context.Context, sensorID string, window time.Duration) ([]types.SensorRecord, error) {
	if err := c.guardID(ctx, "read last window", sensorID); err != nil {
		return nil, err
	}

	records, err := c.primary.ReadLastWindow(ctx, sensorID, window)
	return records, wrap("read last window", err)
}

func (c *coordinator) ReadDownsampled(ctx context.Context, sensorID string, after time.Time, intervalMinutes int, pick float64) ([]types.SensorRecord, error) {
	if err := c.guardID(ctx, "read downsampled", sensorID); err != nil {
		return nil, err
	}

	records, err := c.primary.ReadDownsampled(ctx, sensorID, after, intervalMinutes, pick)
	return records, wrap("read downsampled", err)
}

func (c *coordinator) ReadLast(ctx context.Context, sensor types.Sensor) (*types.SensorRecord, error) {
	if err := c.guardSensor(ctx, "read last", sensor); err != nil {
		return nil, err
	}

	r, err := c.primary.ReadLast(ctx, sensor.MacID)
	return r, wrap("read last", err)
}

func (c *coordinator) ReadLatest(ctx context.Context, sensor types.Sensor) (*types.SensorRecord, error) {
	if err := c.guardSensor(ctx, "read latest", sensor); err != nil {
		return nil, err
	}

	r, err := c.primary.ReadLatest(ctx, sensor.MacID)
	return r, wrap("read latest", err)
}

func (c *coordinator) ReadSensorSettings(ctx context.Context, sensor types.Sensor) (*types.SensorSettings, error) {
	if err := c.guardSensor(ctx, "read sensor settings", sensor); err != nil {
		return nil, err
	}

	s, err := c.primary.ReadSensorSettings(ctx, sensor)
	return s, wrap("read sensor settings", err)
}

func (c *coordinator) ReadSensorSubscription(ctx context.Context, sensor types.Sensor) (*types.CloudSensorSubscription, error) {
	if err := c.guardSensor(ctx, "read sensor subscription", sensor); err != nil {
		return nil, err
	}

	s, err := c.primary.ReadSensorSubscription(ctx, sensor)
	return s, wrap("read sensor subscription", err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ReadError{Op: op, Err: err}
}

var errNoMacID = errors.New("sensor has no mac id")
var errNoSensorID = errors.New("no sensor id given")

func (c *coordinator) guardSensor(ctx context.Context, op string, sensor types.Sensor) error {
	if sensor.HasMacID() {
		return nil
	}
	return c.reject(ctx, op, sensor.ID(), errNoMacID)
}

func (c *coordinator) guardID(ctx context.Context, op, sensorID string) error {
	if sensorID != "" {
		return nil
	}
	return c.reject(ctx, op, sensorID, errNoSensorID)
}

func (c *coordinator) reject(ctx context.Context, op, sensorID string, reason error) error {
	log := logging.GetLoggerFromContext(ctx)

	event := log.Warn()
	if c.debug {
		event = log.Error()
	}
	event.Str("op", op).Str("sensor_id", sensorID).Err(reason).Msg("rejected read without a network identifier")

	return fmt.Errorf("%w: %s: %w", storage.ErrInvalidQuery, op, reason)
}
