package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/legacy"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/primary"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/matryer/is"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) StatusCode() int { return int(e) }

func TestRetryable(t *testing.T) {
	is := is.New(t)

	cases := []struct {
		cause error
		want  bool
	}{
		{nil, false},
		{errors.New("payload rejected"), false},
		{context.DeadlineExceeded, true},
		{&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}, true},
		{statusError(503), true},
		{statusError(429), true},
		{statusError(400), false},
		{statusError(404), false},
		{fmt.Errorf("post alert: %w", statusError(500)), true},
	}

	for _, c := range cases {
		is.Equal(Retryable(c.cause), c.want)
	}
}

func TestEnqueueRejectsStructuralFailures(t *testing.T) {
	is, ctx, env := testSetup(t)

	_, err := env.store.Enqueue(ctx, "AA:BB", types.RequestTypeAlertPost, nil, statusError(422))
	is.True(errors.Is(err, ErrNotRetryable))

	all, err := env.store.All(ctx)
	is.NoErr(err)
	is.Equal(len(all), 0)
}

func TestEnqueueStoresRetryableFailures(t *testing.T) {
	is, ctx, env := testSetup(t)

	r, err := env.store.Enqueue(ctx, "AA:BB", types.RequestTypeSettingsPost, []byte(`{"a":1}`), statusError(502))
	is.NoErr(err)
	is.True(r.ID != "")

	stored, err := env.primary.ReadQueuedRequestsForKey(ctx, "AA:BB")
	is.NoErr(err)
	is.Equal(len(stored), 1)
	is.Equal(string(stored[0].Payload), `{"a":1}`)
}

func TestReadsMergeBothBackendsInEnqueueOrder(t *testing.T) {
	is, ctx, env := testSetup(t)

	t0 := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	_, err := env.primary.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "k", Type: types.RequestTypeSensor, CreatedAt: t0.Add(2 * time.Second)})
	is.NoErr(err)
	_, err = env.legacy.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "k", Type: types.RequestTypeUnshare, CreatedAt: t0})
	is.NoErr(err)
	_, err = env.primary.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "other", Type: types.RequestTypeUnshare, CreatedAt: t0.Add(time.Second)})
	is.NoErr(err)

	all, err := env.store.ForKey(ctx, "k")
	is.NoErr(err)
	is.Equal(len(all), 2)
	is.Equal(all[0].Type, types.RequestTypeUnshare)
	is.Equal(all[1].Type, types.RequestTypeSensor)

	unshares, err := env.store.ForType(ctx, types.RequestTypeUnshare)
	is.NoErr(err)
	is.Equal(len(unshares), 2)
	is.Equal(unshares[0].Key, "k")
	is.Equal(unshares[1].Key, "other")
}

func TestReplayStopsKeyChainOnFirstFailure(t *testing.T) {
	is, ctx, env := testSetup(t)

	for _, key := range []string{"a", "a", "a", "b", "b"} {
		_, err := env.store.Enqueue(ctx, key, types.RequestTypeAlertPost, nil, context.DeadlineExceeded)
		is.NoErr(err)
	}

	failAt := 2
	sender := &recordingSender{fail: func(key string, n int) bool { return key == "a" && n == failAt }}

	result, err := env.store.Replay(ctx, sender)
	is.NoErr(err)

	is.Equal(result.Sent, 3)
	is.Equal(result.Pending, 2)
	is.Equal(len(result.Failed), 1)
	is.True(result.Failed["a"] != nil)

	is.Equal(sender.count("a"), 2)
	is.Equal(sender.count("b"), 2)

	remaining, err := env.store.ForKey(ctx, "a")
	is.NoErr(err)
	is.Equal(len(remaining), 2)

	remaining, err = env.store.ForKey(ctx, "b")
	is.NoErr(err)
	is.Equal(len(remaining), 0)
}

func TestReplaySendsSameKeyInEnqueueOrder(t *testing.T) {
	is, ctx, env := testSetup(t)

	var ids []string
	for range 5 {
		r, err := env.store.Enqueue(ctx, "a", types.RequestTypeAlertPost, nil, context.DeadlineExceeded)
		is.NoErr(err)
		ids = append(ids, r.ID)
	}

	sender := &recordingSender{}
	_, err := env.store.Replay(ctx, sender)
	is.NoErr(err)

	is.Equal(sender.sentIDs("a"), ids)
}

func TestFlushEmptiesTheQueue(t *testing.T) {
	is, ctx, env := testSetup(t)

	_, err := env.legacy.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "a", Type: types.RequestTypeSensor})
	is.NoErr(err)
	_, err = env.store.Enqueue(ctx, "b", types.RequestTypeSensor, nil, statusError(500))
	is.NoErr(err)

	is.NoErr(env.store.Flush(ctx))

	all, err := env.store.All(ctx)
	is.NoErr(err)
	is.Equal(len(all), 0)
}

type testEnv struct {
	store   QueuedRequestStore
	legacy  storage.Backend
	primary storage.Backend
}

func testSetup(t *testing.T) (*is.I, context.Context, *testEnv) {
	is := is.New(t)
	ctx := context.Background()

	l, err := legacy.New(database.NewSQLiteConnector(ctx, ""))
	is.NoErr(err)
	t.Cleanup(func() { l.Close() })

	p, err := primary.New(ctx, "")
	is.NoErr(err)
	t.Cleanup(func() { p.Close() })

	return is, ctx, &testEnv{store: New(l, p, nil, 2), legacy: l, primary: p}
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]string
	fail func(key string, n int) bool
}

func (s *recordingSender) Send(ctx context.Context, r types.QueuedCloudRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sent == nil {
		s.sent = map[string][]string{}
	}
	s.sent[r.Key] = append(s.sent[r.Key], r.ID)

	if s.fail != nil && s.fail(r.Key, len(s.sent[r.Key])) {
		return statusError(503)
	}
	return nil
}

func (s *recordingSender) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[key])
}

func (s *recordingSender) sentIDs(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.sent[key]...)
}
