package storage

import (
	"context"
	"time"

	"github.com/diwise/iot-sensor-storage/pkg/types"
)

type Kind string

const (
	Legacy  Kind = "legacy"
	Primary Kind = "primary"
)

func (k Kind) String() string {
	return string(k)
}

// SensorKey is the identifier a backend of this kind stores the sensor under.
// The legacy store predates network identifiers and keys on the local identifier,
// the primary store keys on the network identifier.
func (k Kind) SensorKey(s types.Sensor) string {
	if k == Legacy && s.LUID != "" {
		return s.LUID
	}
	return s.MacID
}

func (k Kind) RecordKey(r types.SensorRecord) string {
	if k == Legacy && r.LUID != "" {
		return r.LUID
	}
	return r.MacID
}

type Backend interface {
	Kind() Kind

	SensorStore
	RecordStore
	SettingsStore
	QueueStore
	SubscriptionStore

	StoredSensorsCount(ctx context.Context) (int64, error)
	StoredMeasurementsCount(ctx context.Context) (int64, error)
	CleanupDBSpace(ctx context.Context) error

	Close() error
}

type SensorStore interface {
	Create(ctx context.Context, sensor types.Sensor) error
	Update(ctx context.Context, sensor types.Sensor) error
	Delete(ctx context.Context, sensor types.Sensor) error

	ReadAll(ctx context.Context) ([]types.Sensor, error)
	ReadOne(ctx context.Context, sensorID string) (types.Sensor, error)
}

type RecordStore interface {
	CreateRecord(ctx context.Context, record types.SensorRecord) error
	CreateRecords(ctx context.Context, records []types.SensorRecord) error

	CreateLast(ctx context.Context, record types.SensorRecord) error
	UpdateLast(ctx context.Context, record types.SensorRecord) error
	DeleteLast(ctx context.Context, sensorID string) error

	ReadRecords(ctx context.Context, sensorID string) ([]types.SensorRecord, error)
	ReadRecordsAfter(ctx context.Context, sensorID string, after time.Time) ([]types.SensorRecord, error)
	ReadInterval(ctx context.Context, sensorID string, after time.Time, interval time.Duration) ([]types.SensorRecord, error)
	ReadLastWindow(ctx context.Context, sensorID string, window time.Duration) ([]types.SensorRecord, error)
	ReadLast(ctx context.Context, sensorID string) (*types.SensorRecord, error)
	ReadLatest(ctx context.Context, sensorID string) (*types.SensorRecord, error)
	ReadDownsampled(ctx context.Context, sensorID string, after time.Time, intervalMinutes int, pick float64) ([]types.SensorRecord, error)

	DeleteAllRecords(ctx context.Context, sensorID string) error
	DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) error
}

type SettingsStore interface {
	ReadSensorSettings(ctx context.Context, sensor types.Sensor) (*types.SensorSettings, error)
	UpdateOffsetCorrection(ctx context.Context, t types.OffsetCorrectionType, value *float64, sensor types.Sensor, lastOriginalRecord *types.SensorRecord) (types.SensorSettings, error)
	UpdateDisplaySettings(ctx context.Context, sensor types.Sensor, displayOrder []string, defaultDisplayOrder bool) (types.SensorSettings, error)
	DeleteOffsetCorrection(ctx context.Context, sensor types.Sensor) error
	DeleteSensorSettings(ctx context.Context, sensor types.Sensor) error
	SaveSettings(ctx context.Context, settings types.SensorSettings) (types.SensorSettings, error)
}

type QueueStore interface {
	ReadQueuedRequests(ctx context.Context) ([]types.QueuedCloudRequest, error)
	ReadQueuedRequestsForKey(ctx context.Context, key string) ([]types.QueuedCloudRequest, error)
	ReadQueuedRequestsForType(ctx context.Context, t types.QueuedRequestType) ([]types.QueuedCloudRequest, error)
	CreateQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) (types.QueuedCloudRequest, error)
	DeleteQueuedRequest(ctx context.Context, request types.QueuedCloudRequest) error
	DeleteQueuedRequests(ctx context.Context) error
}

type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, subscription types.CloudSensorSubscription) (types.CloudSensorSubscription, error)
	ReadSensorSubscription(ctx context.Context, sensor types.Sensor) (*types.CloudSensorSubscription, error)
}
