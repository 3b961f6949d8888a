package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
)

var ErrNotMigratable = errors.New("sensor needs both a local and a network identifier to migrate")

// Migrate moves a sensor that has gained a network identifier from legacy to primary storage.
// The sensor, its history, last record and settings are copied before the legacy rows are
// removed. Copying is idempotent so a failed migration can be retried.
func (p *pool) Migrate(ctx context.Context, sensor types.Sensor) (err error) {
	if sensor.LUID == "" || !sensor.HasMacID() {
		return ErrNotMigratable
	}

	ctx, log := logging.WithSensor(ctx, sensor.ID())

	ctx, span := tracing.Start(ctx, tracer, "migrate-sensor", sensor.ID())
	defer func() { tracing.End(span, err) }()
	legacyKey := storage.Legacy.SensorKey(sensor)

	stored, err := p.legacy.ReadOne(ctx, legacyKey)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := p.primary.Create(ctx, sensor); err != nil {
		if updateErr := p.primary.Update(ctx, sensor); updateErr != nil {
			return fmt.Errorf("migrate sensor: %w", errors.Join(err, updateErr))
		}
	}

	records, err := p.legacy.ReadRecords(ctx, legacyKey)
	if err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}

	moved := lo.Map(records, func(r types.SensorRecord, _ int) types.SensorRecord { return r.For(sensor) })
	if err := p.primary.CreateRecords(ctx, moved); err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}

	latest, err := p.legacy.ReadLatest(ctx, legacyKey)
	if err != nil {
		return fmt.Errorf("migrate last record: %w", err)
	}
	if latest != nil {
		if err := p.primary.UpdateLast(ctx, latest.For(sensor)); err != nil {
			return fmt.Errorf("migrate last record: %w", err)
		}
	}

	settings, err := p.legacy.ReadSensorSettings(ctx, stored)
	if err != nil {
		return fmt.Errorf("migrate settings: %w", err)
	}
	if settings != nil {
		settings.SensorID = storage.Primary.SensorKey(sensor)
		if _, err := p.primary.SaveSettings(ctx, *settings); err != nil {
			return fmt.Errorf("migrate settings: %w", err)
		}
	}

	cleanup := errors.Join(
		p.legacy.DeleteAllRecords(ctx, legacyKey),
		p.legacy.DeleteLast(ctx, legacyKey),
		p.legacy.DeleteSensorSettings(ctx, stored),
		p.legacy.Delete(ctx, stored),
	)

	if err := p.local.ReplaceSortOrder(stored.ID(), sensor.ID()); err != nil {
		log.Error().Err(err).Msg("failed to update sort order after migration")
	}

	if cleanup != nil {
		log.Warn().Err(cleanup).Msg("sensor copied to primary storage but legacy rows remain")
		return fmt.Errorf("migrate cleanup: %w", cleanup)
	}

	log.Info().Int("records", len(records)).Msg("sensor migrated to primary storage")

	return nil
}
