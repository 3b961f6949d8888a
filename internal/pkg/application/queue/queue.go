// Package queue is the durable outbox for cloud writes that could not be sent right away.
package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var ErrNotRetryable = errors.New("request failure is not retryable")

// QueuedRequestStore keeps cloud requests until they have been acknowledged. New requests are
// written to the primary backend; reads, deletes and flushes cover both backends so requests
// queued before an upgrade are still replayed.
type QueuedRequestStore interface {
	Enqueue(ctx context.Context, key string, t types.QueuedRequestType, payload []byte, cause error) (types.QueuedCloudRequest, error)

	All(ctx context.Context) ([]types.QueuedCloudRequest, error)
	ForKey(ctx context.Context, key string) ([]types.QueuedCloudRequest, error)
	ForType(ctx context.Context, t types.QueuedRequestType) ([]types.QueuedCloudRequest, error)

	Delete(ctx context.Context, request types.QueuedCloudRequest) error
	Flush(ctx context.Context) error

	Replay(ctx context.Context, sender Sender) (ReplayResult, error)
}

type Sender interface {
	Send(ctx context.Context, request types.QueuedCloudRequest) error
}

type SenderFunc func(ctx context.Context, request types.QueuedCloudRequest) error

func (f SenderFunc) Send(ctx context.Context, request types.QueuedCloudRequest) error {
	return f(ctx, request)
}

type ReplayResult struct {
	Sent    int
	Pending int
	Failed  map[string]error
}

type store struct {
	legacy      storage.Backend
	primary     storage.Backend
	metrics     *metrics.StorageMetrics
	concurrency int
}

func New(legacy, primary storage.Backend, m *metrics.StorageMetrics, concurrency int) QueuedRequestStore {
	if concurrency < 2 {
		concurrency = 4
	}

	return &store{legacy: legacy, primary: primary, metrics: m, concurrency: concurrency}
}

// Retryable reports whether a failed cloud write should be queued. Network faults, timeouts and
// server side or rate limit responses are retried. Anything else is a structural failure.
func Retryable(cause error) bool {
	if cause == nil {
		return false
	}

	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, unix.ECONNREFUSED) {
		return true
	}

	var ne net.Error
	if errors.As(cause, &ne) {
		return true
	}

	var status interface{ StatusCode() int }
	if errors.As(cause, &status) {
		code := status.StatusCode()
		return code >= 500 || code == 429
	}

	return false
}

func (s *store) Enqueue(ctx context.Context, key string, t types.QueuedRequestType, payload []byte, cause error) (types.QueuedCloudRequest, error) {
	if !Retryable(cause) {
		return types.QueuedCloudRequest{}, fmt.Errorf("%w: %w", ErrNotRetryable, cause)
	}

	request, err := s.primary.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: key, Type: t, Payload: payload})
	if err != nil {
		return types.QueuedCloudRequest{}, err
	}

	log := logging.GetLoggerFromContext(ctx)
	log.Debug().
		Str("key", key).Str("type", t.String()).Err(cause).
		Msg("cloud request queued for replay")

	return request, nil
}

func (s *store) All(ctx context.Context) ([]types.QueuedCloudRequest, error) {
	return s.read(func(b storage.Backend) ([]types.QueuedCloudRequest, error) {
		return b.ReadQueuedRequests(ctx)
	})
}

func (s *store) ForKey(ctx context.Context, key string) ([]types.QueuedCloudRequest, error) {
	return s.read(func(b storage.Backend) ([]types.QueuedCloudRequest, error) {
		return b.ReadQueuedRequestsForKey(ctx, key)
	})
}

func (s *store) ForType(ctx context.Context, t types.QueuedRequestType) ([]types.QueuedCloudRequest, error) {
	return s.read(func(b storage.Backend) ([]types.QueuedCloudRequest, error) {
		return b.ReadQueuedRequestsForType(ctx, t)
	})
}

// read merges both backends in enqueue order. Legacy requests sort first on equal timestamps.
func (s *store) read(fn func(storage.Backend) ([]types.QueuedCloudRequest, error)) ([]types.QueuedCloudRequest, error) {
	older, err := fn(s.legacy)
	if err != nil {
		return nil, err
	}

	newer, err := fn(s.primary)
	if err != nil {
		return nil, err
	}

	requests := append(older, newer...)
	slices.SortStableFunc(requests, func(a, b types.QueuedCloudRequest) int {
		return cmp.Compare(a.CreatedAt.UnixMilli(), b.CreatedAt.UnixMilli())
	})

	return requests, nil
}

func (s *store) Delete(ctx context.Context, request types.QueuedCloudRequest) error {
	return errors.Join(
		s.legacy.DeleteQueuedRequest(ctx, request),
		s.primary.DeleteQueuedRequest(ctx, request),
	)
}

func (s *store) Flush(ctx context.Context) error {
	err := errors.Join(s.legacy.DeleteQueuedRequests(ctx), s.primary.DeleteQueuedRequests(ctx))
	if err == nil {
		s.metrics.QueueDepth(0)
	}
	return err
}

// Replay sends every queued request. Requests for the same key are sent one at a time in enqueue
// order and a key stops at its first failure so later requests never overtake it. Keys are
// replayed concurrently.
func (s *store) Replay(ctx context.Context, sender Sender) (ReplayResult, error) {
	requests, err := s.All(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	byKey := lo.GroupBy(requests, func(r types.QueuedCloudRequest) string { return r.Key })
	keys := lo.Uniq(lo.Map(requests, func(r types.QueuedCloudRequest, _ int) string { return r.Key }))

	type outcome struct {
		key     string
		sent    int
		pending int
		err     error
	}

	outcomes := make([]outcome, len(keys))

	g := errgroup.Group{}
	g.SetLimit(s.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			o := outcome{key: key}
			chain := byKey[key]

			for n, r := range chain {
				err := sender.Send(ctx, r)
				s.metrics.Replay(err)

				if err == nil {
					err = s.Delete(ctx, r)
				}

				if err != nil {
					o.err = err
					o.pending = len(chain) - n
					break
				}

				o.sent++
			}

			outcomes[i] = o
			return nil
		})
	}

	g.Wait()

	log := logging.GetLoggerFromContext(ctx)
	result := ReplayResult{Failed: map[string]error{}}

	for _, o := range outcomes {
		result.Sent += o.sent
		result.Pending += o.pending
		if o.err != nil {
			result.Failed[o.key] = o.err
			log.Warn().Err(o.err).Str("key", o.key).Int("pending", o.pending).Msg("replay stopped for key")
		}
	}

	s.metrics.QueueDepth(result.Pending)

	return result, nil
}
