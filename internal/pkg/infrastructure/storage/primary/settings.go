package primary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
)

const settingsColumns = `sensor_id, temperature_offset, temperature_offset_date, humidity_offset, humidity_offset_date,
	pressure_offset, pressure_offset_date, display_order, default_display_order`

const upsertSettingsQuery = `INSERT INTO sensor_settings (` + settingsColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (sensor_id) DO UPDATE SET
		temperature_offset = EXCLUDED.temperature_offset,
		temperature_offset_date = EXCLUDED.temperature_offset_date,
		humidity_offset = EXCLUDED.humidity_offset,
		humidity_offset_date = EXCLUDED.humidity_offset_date,
		pressure_offset = EXCLUDED.pressure_offset,
		pressure_offset_date = EXCLUDED.pressure_offset_date,
		display_order = EXCLUDED.display_order,
		default_display_order = EXCLUDED.default_display_order`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readSettings(ctx context.Context, q querier, key string) (*types.SensorSettings, error) {
	var (
		s                                  types.SensorSettings
		temperature, humidity, pressure    sql.NullFloat64
		temperatureAt, humidityAt, pressAt sql.NullInt64
		displayOrder                       string
	)

	err := q.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM sensor_settings WHERE sensor_id = ?`, key).Scan(
		&s.SensorID, &temperature, &temperatureAt, &humidity, &humidityAt, &pressure, &pressAt, &displayOrder, &s.DefaultDisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.TemperatureOffset, s.TemperatureOffsetDate = floatOrNil(temperature), timeOrNil(temperatureAt)
	s.HumidityOffset, s.HumidityOffsetDate = floatOrNil(humidity), timeOrNil(humidityAt)
	s.PressureOffset, s.PressureOffsetDate = floatOrNil(pressure), timeOrNil(pressAt)

	if err := json.Unmarshal([]byte(displayOrder), &s.DisplayOrder); err != nil {
		return nil, err
	}
	if len(s.DisplayOrder) == 0 {
		s.DisplayOrder = nil
	}

	return &s, nil
}

func writeSettings(ctx context.Context, q querier, s types.SensorSettings) error {
	displayOrder, err := json.Marshal(nonNil(s.DisplayOrder))
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, upsertSettingsQuery,
		s.SensorID,
		nullFloat(s.TemperatureOffset), nullTime(s.TemperatureOffsetDate),
		nullFloat(s.HumidityOffset), nullTime(s.HumidityOffsetDate),
		nullFloat(s.PressureOffset), nullTime(s.PressureOffsetDate),
		string(displayOrder), s.DefaultDisplayOrder)

	return err
}

func sensorKey(op string, sensor types.Sensor) (string, error) {
	if !sensor.HasMacID() {
		return "", storage.InvalidQuery(kind, op, "sensor has no mac id")
	}
	return kind.SensorKey(sensor), nil
}

func (b *Backend) ReadSensorSettings(ctx context.Context, sensor types.Sensor) (*types.SensorSettings, error) {
	key, err := sensorKey("read settings", sensor)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	s, err := readSettings(ctx, b.db, key)
	return s, wrap("read settings", err)
}

func (b *Backend) UpdateOffsetCorrection(ctx context.Context, t types.OffsetCorrectionType, value *float64, sensor types.Sensor, lastOriginalRecord *types.SensorRecord) (types.SensorSettings, error) {
	key, err := sensorKey("update offset", sensor)
	if err != nil {
		return types.SensorSettings{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var result types.SensorSettings

	err = b.transaction(ctx, func(tx *sql.Tx) error {
		current, err := readSettings(ctx, tx, key)
		if err != nil {
			return err
		}

		settings := types.SensorSettings{SensorID: key}
		if current != nil {
			settings = *current
		}
		settings.SetOffset(t, value, b.now())

		if err := writeSettings(ctx, tx, settings); err != nil {
			return err
		}

		if lastOriginalRecord != nil {
			offset := 0.0
			if value != nil {
				offset = *value
			}
			if _, err := tx.ExecContext(ctx, upsertLastQuery, recordArgs(key, lastOriginalRecord.WithOffset(t, offset))...); err != nil {
				return err
			}
		}

		result = settings
		return nil
	})

	if err != nil {
		return types.SensorSettings{}, wrap("update offset", err)
	}

	return result, nil
}

func (b *Backend) UpdateDisplaySettings(ctx context.Context, sensor types.Sensor, displayOrder []string, defaultDisplayOrder bool) (types.SensorSettings, error) {
	key, err := sensorKey("update display settings", sensor)
	if err != nil {
		return types.SensorSettings{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var result types.SensorSettings

	err = b.transaction(ctx, func(tx *sql.Tx) error {
		current, err := readSettings(ctx, tx, key)
		if err != nil {
			return err
		}

		settings := types.SensorSettings{SensorID: key}
		if current != nil {
			settings = *current
		}
		settings.DisplayOrder = displayOrder
		settings.DefaultDisplayOrder = defaultDisplayOrder

		result = settings
		return writeSettings(ctx, tx, settings)
	})

	if err != nil {
		return types.SensorSettings{}, wrap("update display settings", err)
	}

	return result, nil
}

func (b *Backend) DeleteOffsetCorrection(ctx context.Context, sensor types.Sensor) error {
	key, err := sensorKey("delete offset", sensor)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.db.ExecContext(ctx, `UPDATE sensor_settings SET
		temperature_offset = NULL, temperature_offset_date = NULL,
		humidity_offset = NULL, humidity_offset_date = NULL,
		pressure_offset = NULL, pressure_offset_date = NULL
		WHERE sensor_id = ?`, key)

	return wrap("delete offset", err)
}

func (b *Backend) DeleteSensorSettings(ctx context.Context, sensor types.Sensor) error {
	key, err := sensorKey("delete settings", sensor)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.db.ExecContext(ctx, `DELETE FROM sensor_settings WHERE sensor_id = ?`, key)
	return wrap("delete settings", err)
}

func (b *Backend) SaveSettings(ctx context.Context, settings types.SensorSettings) (types.SensorSettings, error) {
	if settings.SensorID == "" {
		return types.SensorSettings{}, storage.InvalidQuery(kind, "save settings", "settings have no sensor id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeSettings(ctx, b.db, settings); err != nil {
		return types.SensorSettings{}, wrap("save settings", err)
	}

	return settings, nil
}
