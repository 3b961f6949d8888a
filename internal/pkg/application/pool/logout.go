package pool

import (
	"context"
	"errors"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type owned struct {
	backend storage.Backend
	sensor  types.Sensor
}

// Logout removes every claimed or cloud sensor from storage and clears local state.
//
// Local state for a sensor is cleared before its delete is dispatched so that a concurrent
// reader cannot bring it back after the delete has finished. Storage deletes are best effort
// and only show up in the result. The returned error is set when local state could not be
// cleared or the completion signal could not be sent.
func (p *pool) Logout(ctx context.Context) (*CleanupResult, error) {
	log := logging.GetLoggerFromContext(ctx)
	result := newResult("logout", "")

	ctx, span := tracing.Start(ctx, tracer, "logout", "")
	defer func() { tracing.End(span, result.Err()) }()

	var targets []owned
	for _, b := range []storage.Backend{p.legacy, p.primary} {
		sensors, err := b.ReadAll(ctx)
		if err != nil {
			result.record(b.Kind().String()+"/read", err)
			continue
		}

		for _, s := range lo.Filter(sensors, func(s types.Sensor, _ int) bool { return s.IsClaimed || s.IsCloud }) {
			targets = append(targets, owned{backend: b, sensor: s})
		}
	}

	var localErr error

	g := errgroup.Group{}
	g.SetLimit(p.fanOut)

	for _, t := range targets {
		id := t.sensor.ID()

		if err := p.local.ClearSensorState(id); err != nil {
			localErr = errors.Join(localErr, err)
			result.record(id+"/"+StepSensorState, err)
		}

		g.Go(func() error {
			key := t.backend.Kind().SensorKey(t.sensor)

			result.record(id+"/"+StepSensor, t.backend.Delete(ctx, t.sensor))
			result.record(id+"/"+StepRecords, t.backend.DeleteAllRecords(ctx, key))
			result.record(id+"/"+StepLastRecord, t.backend.DeleteLast(ctx, key))

			return nil
		})
	}

	g.Wait()

	result.record(StepQueue, errors.Join(p.legacy.DeleteQueuedRequests(ctx), p.primary.DeleteQueuedRequests(ctx)))

	if err := p.local.ClearGlobalState(); err != nil {
		localErr = errors.Join(localErr, err)
		result.record(StepGlobalState, err)
	}

	var notifyErr error
	if p.publisher != nil {
		notifyErr = p.publisher.Publish(ctx, &types.StorageCleared{
			Sensors:   lo.Map(targets, func(t owned, _ int) string { return t.sensor.ID() }),
			Failed:    result.failedSteps(),
			Timestamp: p.now().UTC(),
		})
		result.record(StepNotify, notifyErr)
	}

	if err := result.Err(); err != nil {
		log.Warn().Err(err).Int("sensors", len(targets)).Msg("logout cleanup incomplete")
	} else {
		log.Info().Int("sensors", len(targets)).Msg("logout cleanup done")
	}

	return result, errors.Join(localErr, notifyErr)
}
