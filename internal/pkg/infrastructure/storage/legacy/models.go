package legacy

import (
	"time"

	"github.com/diwise/iot-sensor-storage/pkg/types"
)

type Sensor struct {
	SensorID        string `gorm:"primaryKey;column:sensor_id"`
	LUID            string `gorm:"column:luid"`
	MacID           string `gorm:"column:mac_id;index"`
	Name            string
	Version         int
	FirmwareVersion string
	IsConnectable   bool
	IsOwner         bool
	IsClaimed       bool
	IsCloud         bool
	CanShare        bool
	Owner           string
	OwnersPlan      string
	SharedTo        []string `gorm:"serializer:json"`
}

func (Sensor) TableName() string {
	return "sensors"
}

func newSensor(key string, s types.Sensor) Sensor {
	return Sensor{
		SensorID:        key,
		LUID:            s.LUID,
		MacID:           s.MacID,
		Name:            s.Name,
		Version:         s.Version,
		FirmwareVersion: s.FirmwareVersion,
		IsConnectable:   s.IsConnectable,
		IsOwner:         s.IsOwner,
		IsClaimed:       s.IsClaimed,
		IsCloud:         s.IsCloud,
		CanShare:        s.CanShare,
		Owner:           s.Owner,
		OwnersPlan:      s.OwnersPlan,
		SharedTo:        s.SharedTo,
	}
}

func (s Sensor) toType() types.Sensor {
	return types.Sensor{
		LUID:            s.LUID,
		MacID:           s.MacID,
		Name:            s.Name,
		Version:         s.Version,
		FirmwareVersion: s.FirmwareVersion,
		IsConnectable:   s.IsConnectable,
		IsOwner:         s.IsOwner,
		IsClaimed:       s.IsClaimed,
		IsCloud:         s.IsCloud,
		CanShare:        s.CanShare,
		Owner:           s.Owner,
		OwnersPlan:      s.OwnersPlan,
		SharedTo:        s.SharedTo,
	}
}

// Measurement holds the columns shared by the history and last-value tables.
type Measurement struct {
	LUID                      string `gorm:"column:luid"`
	MacID                     string `gorm:"column:mac_id"`
	Source                    string
	RSSI                      *int `gorm:"column:rssi"`
	Temperature               *float64
	Humidity                  *float64
	Pressure                  *float64
	AccelerationX             *float64
	AccelerationY             *float64
	AccelerationZ             *float64
	Voltage                   *float64
	MovementCounter           *int
	MeasurementSequenceNumber *int
	TxPower                   *int
	TemperatureOffset         float64
	HumidityOffset            float64
	PressureOffset            float64
}

type Record struct {
	SensorID  string `gorm:"primaryKey;column:sensor_id"`
	Timestamp int64  `gorm:"primaryKey;column:ts;autoIncrement:false"`
	Measurement
}

func (Record) TableName() string {
	return "records"
}

type LastRecord struct {
	SensorID  string `gorm:"primaryKey;column:sensor_id"`
	Timestamp int64  `gorm:"column:ts"`
	Measurement
}

func (LastRecord) TableName() string {
	return "last_records"
}

func newMeasurement(r types.SensorRecord) Measurement {
	m := Measurement{
		LUID:                      r.LUID,
		MacID:                     r.MacID,
		Source:                    string(r.Source),
		RSSI:                      r.RSSI,
		Temperature:               r.Temperature,
		Humidity:                  r.Humidity,
		Pressure:                  r.Pressure,
		Voltage:                   r.Voltage,
		MovementCounter:           r.MovementCounter,
		MeasurementSequenceNumber: r.MeasurementSequenceNumber,
		TxPower:                   r.TxPower,
		TemperatureOffset:         r.TemperatureOffset,
		HumidityOffset:            r.HumidityOffset,
		PressureOffset:            r.PressureOffset,
	}

	if r.Acceleration != nil {
		m.AccelerationX = &r.Acceleration.X
		m.AccelerationY = &r.Acceleration.Y
		m.AccelerationZ = &r.Acceleration.Z
	}

	return m
}

func (m Measurement) toType(ts int64) types.SensorRecord {
	r := types.SensorRecord{
		LUID:                      m.LUID,
		MacID:                     m.MacID,
		Timestamp:                 time.UnixMilli(ts).UTC(),
		Source:                    types.RecordSource(m.Source),
		RSSI:                      m.RSSI,
		Temperature:               m.Temperature,
		Humidity:                  m.Humidity,
		Pressure:                  m.Pressure,
		Voltage:                   m.Voltage,
		MovementCounter:           m.MovementCounter,
		MeasurementSequenceNumber: m.MeasurementSequenceNumber,
		TxPower:                   m.TxPower,
		TemperatureOffset:         m.TemperatureOffset,
		HumidityOffset:            m.HumidityOffset,
		PressureOffset:            m.PressureOffset,
	}

	if m.AccelerationX != nil && m.AccelerationY != nil && m.AccelerationZ != nil {
		r.Acceleration = &types.Acceleration{X: *m.AccelerationX, Y: *m.AccelerationY, Z: *m.AccelerationZ}
	}

	return r
}

func newRecord(key string, r types.SensorRecord) Record {
	return Record{SensorID: key, Timestamp: r.Timestamp.UnixMilli(), Measurement: newMeasurement(r)}
}

func (r Record) toType() types.SensorRecord {
	return r.Measurement.toType(r.Timestamp)
}

func newLastRecord(key string, r types.SensorRecord) LastRecord {
	return LastRecord{SensorID: key, Timestamp: r.Timestamp.UnixMilli(), Measurement: newMeasurement(r)}
}

func (r LastRecord) toType() types.SensorRecord {
	return r.Measurement.toType(r.Timestamp)
}

type Settings struct {
	SensorID              string `gorm:"primaryKey;column:sensor_id"`
	TemperatureOffset     *float64
	TemperatureOffsetDate *time.Time
	HumidityOffset        *float64
	HumidityOffsetDate    *time.Time
	PressureOffset        *float64
	PressureOffsetDate    *time.Time
	DisplayOrder          []string `gorm:"serializer:json"`
	DefaultDisplayOrder   bool
}

func (Settings) TableName() string {
	return "sensor_settings"
}

func newSettings(s types.SensorSettings) Settings {
	return Settings{
		SensorID:              s.SensorID,
		TemperatureOffset:     s.TemperatureOffset,
		TemperatureOffsetDate: s.TemperatureOffsetDate,
		HumidityOffset:        s.HumidityOffset,
		HumidityOffsetDate:    s.HumidityOffsetDate,
		PressureOffset:        s.PressureOffset,
		PressureOffsetDate:    s.PressureOffsetDate,
		DisplayOrder:          s.DisplayOrder,
		DefaultDisplayOrder:   s.DefaultDisplayOrder,
	}
}

func (s Settings) toType() types.SensorSettings {
	return types.SensorSettings{
		SensorID:              s.SensorID,
		TemperatureOffset:     s.TemperatureOffset,
		TemperatureOffsetDate: s.TemperatureOffsetDate,
		HumidityOffset:        s.HumidityOffset,
		HumidityOffsetDate:    s.HumidityOffsetDate,
		PressureOffset:        s.PressureOffset,
		PressureOffsetDate:    s.PressureOffsetDate,
		DisplayOrder:          s.DisplayOrder,
		DefaultDisplayOrder:   s.DefaultDisplayOrder,
	}
}

type QueuedRequest struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	ID         string `gorm:"column:id;uniqueIndex"`
	Key        string `gorm:"column:request_key;index:idx_queued_key_type_created,priority:1"`
	Type       int    `gorm:"column:request_type;index:idx_queued_key_type_created,priority:2"`
	EnqueuedAt int64  `gorm:"column:created_at;index:idx_queued_key_type_created,priority:3"`
	Payload    []byte
	Attempts   int
}

func (QueuedRequest) TableName() string {
	return "queued_requests"
}

func (q QueuedRequest) toType() types.QueuedCloudRequest {
	return types.QueuedCloudRequest{
		ID:        q.ID,
		Key:       q.Key,
		Type:      types.QueuedRequestType(q.Type),
		Payload:   q.Payload,
		CreatedAt: time.UnixMilli(q.EnqueuedAt).UTC(),
		Attempts:  q.Attempts,
	}
}

type Subscription struct {
	MacID                string `gorm:"primaryKey;column:mac_id"`
	SubscriptionName     string
	IsActive             bool
	MaxClaims            int
	MaxHistoryDays       int
	MaxResolutionMinutes int
	MaxShares            int
	MaxSharesPerSensor   int
	DelayedAlertAllowed  bool
	EmailAlertAllowed    bool
	OfflineAlertAllowed  bool
	PushAlertAllowed     bool
	TelegramAlertAllowed bool
	PDFExportAllowed     bool `gorm:"column:pdf_export_allowed"`
	EndAt                *time.Time
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func newSubscription(s types.CloudSensorSubscription) Subscription {
	return Subscription{
		MacID:                s.MacID,
		SubscriptionName:     s.SubscriptionName,
		IsActive:             s.IsActive,
		MaxClaims:            s.MaxClaims,
		MaxHistoryDays:       s.MaxHistoryDays,
		MaxResolutionMinutes: s.MaxResolutionMinutes,
		MaxShares:            s.MaxShares,
		MaxSharesPerSensor:   s.MaxSharesPerSensor,
		DelayedAlertAllowed:  s.DelayedAlertAllowed,
		EmailAlertAllowed:    s.EmailAlertAllowed,
		OfflineAlertAllowed:  s.OfflineAlertAllowed,
		PushAlertAllowed:     s.PushAlertAllowed,
		TelegramAlertAllowed: s.TelegramAlertAllowed,
		PDFExportAllowed:     s.PDFExportAllowed,
		EndAt:                s.EndAt,
	}
}

func (s Subscription) toType() types.CloudSensorSubscription {
	return types.CloudSensorSubscription{
		MacID:                s.MacID,
		SubscriptionName:     s.SubscriptionName,
		IsActive:             s.IsActive,
		MaxClaims:            s.MaxClaims,
		MaxHistoryDays:       s.MaxHistoryDays,
		MaxResolutionMinutes: s.MaxResolutionMinutes,
		MaxShares:            s.MaxShares,
		MaxSharesPerSensor:   s.MaxSharesPerSensor,
		DelayedAlertAllowed:  s.DelayedAlertAllowed,
		EmailAlertAllowed:    s.EmailAlertAllowed,
		OfflineAlertAllowed:  s.OfflineAlertAllowed,
		PushAlertAllowed:     s.PushAlertAllowed,
		TelegramAlertAllowed: s.TelegramAlertAllowed,
		PDFExportAllowed:     s.PDFExportAllowed,
		EndAt:                s.EndAt,
	}
}
