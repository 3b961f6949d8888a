// Package ingestion persists records pushed by the advertisement scanner without blocking it.
package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-sensor-storage/pkg/types"
)

//go:generate moq -rm -out writer_mock.go . Writer

type Writer interface {
	CreateRecord(ctx context.Context, record types.SensorRecord) error
	UpdateLast(ctx context.Context, record types.SensorRecord) error
}

type Config struct {
	// SaveInterval is the minimum time between two history rows for the same sensor.
	SaveInterval time.Duration `yaml:"saveInterval"`
}

type slot struct {
	inFlight    bool
	pending     *types.SensorRecord
	lastHistory time.Time
}

// Ingester writes at most one record per sensor at a time. A record submitted while a write is
// in flight waits as pending and replaces any older pending record for the same sensor.
type Ingester struct {
	w       Writer
	cfg     Config
	metrics *metrics.StorageMetrics
	now     func() time.Time

	mu      sync.Mutex
	slots   map[string]*slot
	stopped bool
	wg      sync.WaitGroup
}

func New(w Writer, cfg Config, m *metrics.StorageMetrics) *Ingester {
	return &Ingester{
		w:       w,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		slots:   map[string]*slot{},
	}
}

// Submit hands a record over for persistence and returns immediately.
func (i *Ingester) Submit(ctx context.Context, record types.SensorRecord) {
	id := record.SensorID()
	if id == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stopped {
		log := logging.GetLoggerFromContext(ctx)
		log.Warn().Str("sensor_id", id).Msg("ingestion stopped, record discarded")
		return
	}

	s, ok := i.slots[id]
	if !ok {
		s = &slot{}
		i.slots[id] = s
	}

	if s.inFlight {
		if s.pending != nil {
			i.metrics.Dropped()
		}
		s.pending = &record
		i.metrics.Pending(i.countPending())
		return
	}

	s.inFlight = true
	i.wg.Add(1)

	go i.run(context.WithoutCancel(ctx), id, record)
}

func (i *Ingester) run(ctx context.Context, id string, record types.SensorRecord) {
	defer i.wg.Done()

	ctx, log := logging.WithSensor(ctx, id)

	for {
		if err := i.w.UpdateLast(ctx, record); err != nil {
			log.Error().Err(err).Msg("failed to store last record")
		}

		if i.historyDue(id) {
			if err := i.w.CreateRecord(ctx, record); err != nil {
				log.Error().Err(err).Msg("failed to store record")
			}
		}

		i.mu.Lock()
		s := i.slots[id]
		if s.pending == nil {
			s.inFlight = false
			i.mu.Unlock()
			return
		}

		record = *s.pending
		s.pending = nil
		i.metrics.Pending(i.countPending())
		i.mu.Unlock()
	}
}

func (i *Ingester) historyDue(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := i.slots[id]
	now := i.now()

	if !s.lastHistory.IsZero() && now.Sub(s.lastHistory) < i.cfg.SaveInterval {
		return false
	}

	s.lastHistory = now
	return true
}

func (i *Ingester) countPending() int {
	n := 0
	for _, s := range i.slots {
		if s.pending != nil {
			n++
		}
	}
	return n
}

// Stop rejects new records and waits for in-flight and pending writes to finish.
func (i *Ingester) Stop() {
	i.mu.Lock()
	i.stopped = true
	i.mu.Unlock()

	i.wg.Wait()
}

// Wait blocks until every write submitted so far has been stored.
func (i *Ingester) Wait() {
	i.wg.Wait()
}
