package types

import "time"

// Message is a notification published on a topic when storage changes.
type Message interface {
	ContentType() string
	TopicName() string
}

type SensorCreated struct {
	SensorID  string    `json:"sensorID"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *SensorCreated) ContentType() string {
	return "application/json"
}
func (d *SensorCreated) TopicName() string {
	return "sensor.created"
}

type SensorDeleted struct {
	SensorID  string    `json:"sensorID"`
	Backend   string    `json:"backend"`
	Failed    []string  `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *SensorDeleted) ContentType() string {
	return "application/json"
}
func (d *SensorDeleted) TopicName() string {
	return "sensor.deleted"
}

type StorageCleared struct {
	Sensors   []string  `json:"sensors"`
	Failed    []string  `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *StorageCleared) ContentType() string {
	return "application/json"
}
func (d *StorageCleared) TopicName() string {
	return "storage.cleared"
}

func (d *SensorCreated) SensorIdentifier() string {
	return d.SensorID
}

func (d *SensorDeleted) SensorIdentifier() string {
	return d.SensorID
}
