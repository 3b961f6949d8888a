package legacy

import (
	"context"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (b *Backend) ReadSensorSettings(ctx context.Context, sensor types.Sensor) (*types.SensorSettings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, found, err := readSettings(b.db.WithContext(ctx), kind.SensorKey(sensor))
	if err != nil {
		return nil, wrap("read settings", err)
	}
	if !found {
		return nil, nil
	}

	settings := s.toType()
	return &settings, nil
}

// UpdateOffsetCorrection stores the offset and, when the last original record is known,
// rewrites the cached last row so that it carries the new offset.
func (b *Backend) UpdateOffsetCorrection(ctx context.Context, t types.OffsetCorrectionType, value *float64, sensor types.Sensor, lastOriginalRecord *types.SensorRecord) (types.SensorSettings, error) {
	key := kind.SensorKey(sensor)
	if key == "" {
		return types.SensorSettings{}, storage.InvalidQuery(kind, "update offset", "sensor has no identifier")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var result types.SensorSettings

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, _, err := readSettings(tx, key)
		if err != nil {
			return err
		}

		settings := s.toType()
		settings.SensorID = key
		settings.SetOffset(t, value, b.now())

		row := newSettings(settings)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}

		if lastOriginalRecord != nil {
			offset := 0.0
			if value != nil {
				offset = *value
			}
			last := newLastRecord(key, lastOriginalRecord.WithOffset(t, offset))
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&last).Error; err != nil {
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
	key := kind.SensorKey(sensor)
	if key == "" {
		return types.SensorSettings{}, storage.InvalidQuery(kind, "update display settings", "sensor has no identifier")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var result types.SensorSettings

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, _, err := readSettings(tx, key)
		if err != nil {
			return err
		}

		s.SensorID = key
		s.DisplayOrder = displayOrder
		s.DefaultDisplayOrder = defaultDisplayOrder

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error; err != nil {
			return err
		}

		result = s.toType()
		return nil
	})

	if err != nil {
		return types.SensorSettings{}, wrap("update display settings", err)
	}

	return result, nil
}

func (b *Backend) DeleteOffsetCorrection(ctx context.Context, sensor types.Sensor) error {
	key := kind.SensorKey(sensor)

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, found, err := readSettings(tx, key)
		if err != nil || !found {
			return err
		}

		settings := s.toType()
		settings.ClearOffsets()

		row := newSettings(settings)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	})

	return wrap("delete offset", err)
}

func (b *Backend) DeleteSensorSettings(ctx context.Context, sensor types.Sensor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.WithContext(ctx).Where("sensor_id = ?", kind.SensorKey(sensor)).Delete(&Settings{}).Error
	return wrap("delete settings", err)
}

func (b *Backend) SaveSettings(ctx context.Context, settings types.SensorSettings) (types.SensorSettings, error) {
	if settings.SensorID == "" {
		return types.SensorSettings{}, storage.InvalidQuery(kind, "save settings", "settings have no sensor id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	row := newSettings(settings)
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return types.SensorSettings{}, wrap("save settings", err)
	}

	return row.toType(), nil
}

func readSettings(db *gorm.DB, key string) (Settings, bool, error) {
	var rows []Settings
	err := db.Where("sensor_id = ?", key).Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return Settings{}, false, err
	}
	return rows[0], true, nil
}
