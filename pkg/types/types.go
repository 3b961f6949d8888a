package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMissingIdentifier = errors.New("sensor has neither a local nor a network identifier")

type Sensor struct {
	LUID            string   `json:"luid,omitempty"`
	MacID           string   `json:"macId,omitempty"`
	Name            string   `json:"name"`
	Version         int      `json:"version,omitempty"`
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
	IsConnectable   bool     `json:"isConnectable"`
	IsOwner         bool     `json:"isOwner"`
	IsClaimed       bool     `json:"isClaimed"`
	IsCloud         bool     `json:"isCloud"`
	CanShare        bool     `json:"canShare"`
	Owner           string   `json:"owner,omitempty"`
	OwnersPlan      string   `json:"ownersPlan,omitempty"`
	SharedTo        []string `json:"sharedTo,omitempty"`
}

// ID is the network identifier when one has been assigned, otherwise the local identifier.
func (s Sensor) ID() string {
	if s.MacID != "" {
		return s.MacID
	}
	return s.LUID
}

func (s Sensor) HasMacID() bool {
	return s.MacID != ""
}

func (s Sensor) Validate() error {
	if s.LUID == "" && s.MacID == "" {
		return ErrMissingIdentifier
	}
	return nil
}

type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type RecordSource string

const (
	SourceUnknown       RecordSource = ""
	SourceAdvertisement RecordSource = "advertisement"
	SourceHeartbeat     RecordSource = "heartbeat"
	SourceLog           RecordSource = "log"
	SourceCloud         RecordSource = "cloud"
)

type SensorRecord struct {
	LUID      string       `json:"luid,omitempty"`
	MacID     string       `json:"macId,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Source    RecordSource `json:"source,omitempty"`

	RSSI                      *int          `json:"rssi,omitempty"`
	Temperature               *float64      `json:"temperature,omitempty"`
	Humidity                  *float64      `json:"humidity,omitempty"`
	Pressure                  *float64      `json:"pressure,omitempty"`
	Acceleration              *Acceleration `json:"acceleration,omitempty"`
	Voltage                   *float64      `json:"voltage,omitempty"`
	MovementCounter           *int          `json:"movementCounter,omitempty"`
	MeasurementSequenceNumber *int          `json:"measurementSequenceNumber,omitempty"`
	TxPower                   *int          `json:"txPower,omitempty"`

	TemperatureOffset float64 `json:"temperatureOffset"`
	HumidityOffset    float64 `json:"humidityOffset"`
	PressureOffset    float64 `json:"pressureOffset"`
}

func (r SensorRecord) SensorID() string {
	if r.MacID != "" {
		return r.MacID
	}
	return r.LUID
}

func (r SensorRecord) HasMacID() bool {
	return r.MacID != ""
}

func (r SensorRecord) ID() string {
	return fmt.Sprintf("%s-%d", r.SensorID(), r.Timestamp.UnixMilli())
}

// For returns a copy of the record attributed to the given sensor.
func (r SensorRecord) For(s Sensor) SensorRecord {
	r.LUID = s.LUID
	r.MacID = s.MacID
	return r
}

type OffsetCorrectionType int

const (
	OffsetTemperature OffsetCorrectionType = iota
	OffsetHumidity
	OffsetPressure
)

func (t OffsetCorrectionType) String() string {
	switch t {
	case OffsetTemperature:
		return "temperature"
	case OffsetHumidity:
		return "humidity"
	case OffsetPressure:
		return "pressure"
	default:
		return fmt.Sprintf("offset(%d)", int(t))
	}
}

type SensorSettings struct {
	SensorID string `json:"sensorId"`

	TemperatureOffset     *float64   `json:"temperatureOffset,omitempty"`
	TemperatureOffsetDate *time.Time `json:"temperatureOffsetDate,omitempty"`
	HumidityOffset        *float64   `json:"humidityOffset,omitempty"`
	HumidityOffsetDate    *time.Time `json:"humidityOffsetDate,omitempty"`
	PressureOffset        *float64   `json:"pressureOffset,omitempty"`
	PressureOffsetDate    *time.Time `json:"pressureOffsetDate,omitempty"`

	DisplayOrder        []string `json:"displayOrder,omitempty"`
	DefaultDisplayOrder bool     `json:"defaultDisplayOrder"`
}

// SetOffset sets or, with a nil value, clears the offset of the given type.
func (s *SensorSettings) SetOffset(t OffsetCorrectionType, value *float64, at time.Time) {
	var date *time.Time
	if value != nil {
		date = &at
	}

	switch t {
	case OffsetTemperature:
		s.TemperatureOffset, s.TemperatureOffsetDate = value, date
	case OffsetHumidity:
		s.HumidityOffset, s.HumidityOffsetDate = value, date
	case OffsetPressure:
		s.PressureOffset, s.PressureOffsetDate = value, date
	}
}

func (s *SensorSettings) ClearOffsets() {
	s.SetOffset(OffsetTemperature, nil, time.Time{})
	s.SetOffset(OffsetHumidity, nil, time.Time{})
	s.SetOffset(OffsetPressure, nil, time.Time{})
}

// Apply adds the calibration offsets to a copy of the record. Stored rows are never modified and
// reads return raw values, so callers that display or export measurements apply the settings
// themselves.
func (s SensorSettings) Apply(r SensorRecord) SensorRecord {
	add := func(v *float64, offset *float64) *float64 {
		if v == nil || offset == nil {
			return v
		}
		sum := *v + *offset
		return &sum
	}

	r.Temperature = add(r.Temperature, s.TemperatureOffset)
	r.Humidity = add(r.Humidity, s.HumidityOffset)
	r.Pressure = add(r.Pressure, s.PressureOffset)

	if s.TemperatureOffset != nil {
		r.TemperatureOffset = *s.TemperatureOffset
	}
	if s.HumidityOffset != nil {
		r.HumidityOffset = *s.HumidityOffset
	}
	if s.PressureOffset != nil {
		r.PressureOffset = *s.PressureOffset
	}

	return r
}

// WithOffset returns a copy of the record carrying the given offset value.
func (r SensorRecord) WithOffset(t OffsetCorrectionType, value float64) SensorRecord {
	switch t {
	case OffsetTemperature:
		r.TemperatureOffset = value
	case OffsetHumidity:
		r.HumidityOffset = value
	case OffsetPressure:
		r.PressureOffset = value
	}
	return r
}

type QueuedRequestType int

const (
	RequestTypeSensor QueuedRequestType = iota + 1
	RequestTypeUnclaim
	RequestTypeUnshare
	RequestTypeAlertPost
	RequestTypeSettingsPost
	RequestTypeSensorSettingsPost
	RequestTypeSubscriptionPost
	RequestTypeUploadImage
)

var requestTypeNames = map[QueuedRequestType]string{
	RequestTypeSensor:             "sensor",
	RequestTypeUnclaim:            "unclaim",
	RequestTypeUnshare:            "unshare",
	RequestTypeAlertPost:          "alert-post",
	RequestTypeSettingsPost:       "settings-post",
	RequestTypeSensorSettingsPost: "sensor-settings-post",
	RequestTypeSubscriptionPost:   "subscription-post",
	RequestTypeUploadImage:        "upload-image",
}

func (t QueuedRequestType) String() string {
	if n, ok := requestTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("request-type(%d)", int(t))
}

func ParseQueuedRequestType(s string) (QueuedRequestType, error) {
	for t, n := range requestTypeNames {
		if strings.EqualFold(n, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown queued request type %q", s)
}

type QueuedCloudRequest struct {
	ID        string            `json:"id"`
	Key       string            `json:"key"`
	Type      QueuedRequestType `json:"type"`
	Payload   []byte            `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Attempts  int               `json:"attempts"`
}

type CloudSensorSubscription struct {
	MacID                string     `json:"macId"`
	SubscriptionName     string     `json:"subscriptionName"`
	IsActive             bool       `json:"isActive"`
	MaxClaims            int        `json:"maxClaims"`
	MaxHistoryDays       int        `json:"maxHistoryDays"`
	MaxResolutionMinutes int        `json:"maxResolutionMinutes"`
	MaxShares            int        `json:"maxShares"`
	MaxSharesPerSensor   int        `json:"maxSharesPerSensor"`
	DelayedAlertAllowed  bool       `json:"delayedAlertAllowed"`
	EmailAlertAllowed    bool       `json:"emailAlertAllowed"`
	OfflineAlertAllowed  bool       `json:"offlineAlertAllowed"`
	PushAlertAllowed     bool       `json:"pushAlertAllowed"`
	TelegramAlertAllowed bool       `json:"telegramAlertAllowed"`
	PDFExportAllowed     bool       `json:"pdfExportAllowed"`
	EndAt                *time.Time `json:"endAt,omitempty"`
}
