// Package retention prunes old history and compacts storage in the background.
package retention

import (
	"context"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/application/pool"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
)

//go:generate moq -rm -out reader_mock.go . Reader

type Reader interface {
	ReadAll(ctx context.Context) ([]types.Sensor, error)
	StoredMeasurementsCount(ctx context.Context) (int64, error)
}

//go:generate moq -rm -out pruner_mock.go . Pruner

type Pruner interface {
	DeleteAllRecordsBefore(ctx context.Context, sensorID string, before time.Time) *pool.CleanupResult
	CleanupDBSpace(ctx context.Context) *pool.CleanupResult
}

type Config struct {
	Interval            time.Duration `yaml:"interval"`
	KeepFor             time.Duration `yaml:"keepFor"`
	CompactionThreshold int64         `yaml:"compactionThreshold"`
}

type Watchdog interface {
	Start(ctx context.Context)
	Stop()
}

type Report struct {
	Pruned    int
	Failed    int
	Stored    int64
	Compacted bool
}

type Service struct {
	done    chan struct{}
	stopped chan struct{}
	reader  Reader
	pruner  Pruner
	cfg     Config
	metrics *metrics.StorageMetrics
	now     func() time.Time
}

func New(reader Reader, pruner Pruner, cfg Config, m *metrics.StorageMetrics) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	return &Service{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		reader:  reader,
		pruner:  pruner,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

func (w *Service) Start(ctx context.Context) {
	go w.backgroundWorker(ctx)
}

func (w *Service) Stop() {
	close(w.done)
	<-w.stopped
}

func (w *Service) backgroundWorker(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce prunes history older than KeepFor for every known sensor and compacts both backends
// when the number of stored records is above the threshold. Failures are logged and the run
// continues.
func (w *Service) RunOnce(ctx context.Context) Report {
	log := logging.GetLoggerFromContext(ctx)
	report := Report{}

	sensors, err := w.reader.ReadAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not list sensors for retention")
	}

	before := w.now().Add(-w.cfg.KeepFor)

	for _, s := range sensors {
		// a sensor that has not been migrated keeps its history under the local identifier
		keys := lo.Uniq(lo.Compact([]string{s.MacID, s.LUID}))

		failed := false
		for _, key := range keys {
			if err := w.pruner.DeleteAllRecordsBefore(ctx, key, before).Err(); err != nil {
				log.Error().Err(err).Str("sensor_id", s.ID()).Msg("could not prune records")
				failed = true
			}
		}

		if failed {
			report.Failed++
		} else {
			report.Pruned++
		}
	}

	w.metrics.PrunedSensors(report.Pruned)

	stored, err := w.reader.StoredMeasurementsCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not count stored records")
		return report
	}

	report.Stored = stored
	w.metrics.Stored(stored)

	if w.cfg.CompactionThreshold > 0 && stored > w.cfg.CompactionThreshold {
		if err := w.pruner.CleanupDBSpace(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("could not compact storage")
		} else {
			report.Compacted = true
		}
	}

	log.Debug().Int("pruned", report.Pruned).Int64("stored", stored).Bool("compacted", report.Compacted).Msg("retention run done")

	return report
}
