// Package routing decides which storage backend owns a sensor. The read and write paths
// both route through here so that they always agree.
package routing

import (
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
)

// For routes sensors with a network identifier to the primary backend and all others to legacy.
func For(sensor types.Sensor) storage.Kind {
	if sensor.HasMacID() {
		return storage.Primary
	}
	return storage.Legacy
}

func ForRecord(record types.SensorRecord) storage.Kind {
	if record.HasMacID() {
		return storage.Primary
	}
	return storage.Legacy
}

// Other returns the backend a sensor is not routed to.
func Other(k storage.Kind) storage.Kind {
	if k == storage.Primary {
		return storage.Legacy
	}
	return storage.Primary
}

// Split partitions records into the legacy and primary sub-batches, preserving order.
func Split(records []types.SensorRecord) (legacy, primary []types.SensorRecord) {
	for _, r := range records {
		if ForRecord(r) == storage.Primary {
			primary = append(primary, r)
		} else {
			legacy = append(legacy, r)
		}
	}
	return legacy, primary
}
