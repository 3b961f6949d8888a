package pool

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/localsettings"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/legacy"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/primary"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/matryer/is"
)

const mac = "AA:BB:CC:DD:EE:FF"

var errInjected = errors.New("injected failure")

func TestCreateRoutesByNetworkIdentifier(t *testing.T) {
	is, ctx, env := testSetup(t)

	is.NoErr(env.pool.Create(ctx, types.Sensor{MacID: mac}))
	is.NoErr(env.pool.Create(ctx, types.Sensor{LUID: "local-1"}))

	_, err := env.primary.ReadOne(ctx, mac)
	is.NoErr(err)
	_, err = env.legacy.ReadOne(ctx, "local-1")
	is.NoErr(err)

	_, err = env.legacy.ReadOne(ctx, mac)
	is.True(storage.IsNotFound(err))

	is.Equal(env.local.SortOrder(), []string{mac, "local-1"})
	is.Equal(len(env.topics()), 2)
}

func TestCreateFailureLeavesSortOrderUntouched(t *testing.T) {
	is, ctx, env := testSetup(t)

	err := env.pool.Create(ctx, types.Sensor{Name: "no identifiers"})
	is.True(errors.Is(err, storage.ErrInvalidQuery))
	is.Equal(len(env.local.SortOrder()), 0)
}

func TestUpdateRoutesToTheBackendUsedByCreate(t *testing.T) {
	is, ctx, env := testSetup(t)

	for _, s := range []types.Sensor{{MacID: mac}, {LUID: "local-1"}} {
		is.NoErr(env.pool.Create(ctx, s))

		s.Name = "renamed"
		is.NoErr(env.pool.Update(ctx, s))
	}

	s, err := env.primary.ReadOne(ctx, mac)
	is.NoErr(err)
	is.Equal(s.Name, "renamed")

	s, err = env.legacy.ReadOne(ctx, "local-1")
	is.NoErr(err)
	is.Equal(s.Name, "renamed")
}

func TestUpdateAfterGainingNetworkIdentifierReportsMismatch(t *testing.T) {
	is, ctx, env := testSetup(t)

	is.NoErr(env.pool.Create(ctx, types.Sensor{LUID: "local-1"}))

	err := env.pool.Update(ctx, types.Sensor{LUID: "local-1", MacID: mac})
	is.True(errors.Is(err, ErrBackendMismatch))
	is.True(storage.IsNotFound(err))

	err = env.pool.Update(ctx, types.Sensor{LUID: "local-2", MacID: "AA:BB:CC:DD:EE:00"})
	is.True(storage.IsNotFound(err))
	is.True(!errors.Is(err, ErrBackendMismatch))
}

func TestMigrateMovesSensorToPrimary(t *testing.T) {
	is, ctx, env := testSetup(t)

	local := types.Sensor{LUID: "local-1", Name: "porch"}
	is.NoErr(env.pool.Create(ctx, local))

	start := time.Now().Add(-time.Hour).Truncate(time.Minute)
	records := make([]types.SensorRecord, 0, 10)
	for i := range 10 {
		records = append(records, types.SensorRecord{LUID: "local-1", Timestamp: start.Add(time.Duration(i) * time.Minute)})
	}
	is.NoErr(env.pool.CreateRecords(ctx, records))
	is.NoErr(env.pool.CreateLast(ctx, records[9]))
	_, err := env.pool.UpdateOffsetCorrection(ctx, types.OffsetHumidity, ptr(3.0), local, nil)
	is.NoErr(err)

	upgraded := types.Sensor{LUID: "local-1", MacID: mac, Name: "porch"}
	is.NoErr(env.pool.Migrate(ctx, upgraded))

	s, err := env.primary.ReadOne(ctx, mac)
	is.NoErr(err)
	is.Equal(s.LUID, "local-1")

	moved, err := env.primary.ReadRecords(ctx, mac)
	is.NoErr(err)
	is.Equal(len(moved), 10)
	is.Equal(moved[0].MacID, mac)

	latest, err := env.primary.ReadLatest(ctx, mac)
	is.NoErr(err)
	is.True(latest != nil)

	settings, err := env.primary.ReadSensorSettings(ctx, upgraded)
	is.NoErr(err)
	is.Equal(*settings.HumidityOffset, 3.0)

	_, err = env.legacy.ReadOne(ctx, "local-1")
	is.True(storage.IsNotFound(err))

	count, err := env.legacy.StoredMeasurementsCount(ctx)
	is.NoErr(err)
	is.Equal(count, int64(0))

	is.Equal(env.local.SortOrder(), []string{mac})
	is.NoErr(env.pool.Update(ctx, upgraded))
}

func TestMigrateRequiresBothIdentifiers(t *testing.T) {
	is, ctx, env := testSetup(t)

	is.True(errors.Is(env.pool.Migrate(ctx, types.Sensor{LUID: "local-1"}), ErrNotMigratable))
	is.True(errors.Is(env.pool.Migrate(ctx, types.Sensor{MacID: mac}), ErrNotMigratable))
}

func TestDeleteRunsEveryCleanupStep(t *testing.T) {
	is, ctx, env := testSetup(t)

	sensor := types.Sensor{MacID: mac}
	is.NoErr(env.pool.Create(ctx, sensor))
	is.NoErr(env.pool.CreateLast(ctx, types.SensorRecord{MacID: mac, Timestamp: time.Now()}))
	is.NoErr(env.local.SetKeepConnection(mac, true))

	result, err := env.pool.Delete(ctx, sensor)
	is.NoErr(err)
	is.NoErr(result.Err())
	is.Equal(len(result.Completed), 6)

	latest, err := env.primary.ReadLatest(ctx, mac)
	is.NoErr(err)
	is.True(latest == nil)

	is.Equal(len(env.local.SortOrder()), 0)
	is.True(!env.local.KeepConnection(mac))
	is.Equal(env.deletedImages(), []string{mac})
}

func TestDeleteCleanupContinuesPastFailures(t *testing.T) {
	cases := map[string]func(*testEnv){
		StepSettings:        func(e *testEnv) { e.primaryFault.settings = errInjected },
		StepBackgroundImage: func(e *testEnv) { e.imageErr = errInjected },
		StepKeepConnection:  func(e *testEnv) { e.keepErr = errInjected },
	}

	for failing, inject := range cases {
		t.Run(failing, func(t *testing.T) {
			is, ctx, env := testSetup(t)

			sensor := types.Sensor{MacID: mac}
			is.NoErr(env.pool.Create(ctx, sensor))
			is.NoErr(env.local.SetKeepConnection(mac, true))
			inject(env)

			result, err := env.pool.Delete(ctx, sensor)
			is.NoErr(err)

			var pf *PartialFailure
			is.True(errors.As(result.Err(), &pf))
			is.Equal(len(pf.Failed), 1)
			is.True(errors.Is(pf.Failed[failing], errInjected))

			for _, step := range []string{StepSettings, StepBackgroundImage, StepKeepConnection, StepSortOrder} {
				if step != failing {
					is.True(slices.Contains(result.Completed, step))
				}
			}

			_, err = env.primary.ReadOne(ctx, mac)
			is.True(storage.IsNotFound(err))
		})
	}
}

func TestDeleteIsGatedOnBackendDelete(t *testing.T) {
	is, ctx, env := testSetup(t)

	result, err := env.pool.Delete(ctx, types.Sensor{MacID: mac})
	is.True(storage.IsNotFound(err))
	is.True(result == nil)
	is.Equal(len(env.deletedImages()), 0)
}

func TestCreateRecordsSplitsBatchByBackend(t *testing.T) {
	is, ctx, env := testSetup(t)

	now := time.Now().Truncate(time.Second)
	records := []types.SensorRecord{
		{LUID: "local-1", Timestamp: now},
		{MacID: mac, Timestamp: now},
		{LUID: "local-1", Timestamp: now.Add(time.Second)},
	}

	is.NoErr(env.pool.CreateRecords(ctx, records))

	l, err := env.legacy.ReadRecords(ctx, "local-1")
	is.NoErr(err)
	is.Equal(len(l), 2)

	p, err := env.primary.ReadRecords(ctx, mac)
	is.NoErr(err)
	is.Equal(len(p), 1)
}

func TestCreateRecordsFailsWhenEitherBackendFails(t *testing.T) {
	is, ctx, env := testSetup(t)
	env.primaryFault.records = errInjected

	now := time.Now().Truncate(time.Second)
	err := env.pool.CreateRecords(ctx, []types.SensorRecord{
		{LUID: "local-1", Timestamp: now},
		{MacID: mac, Timestamp: now},
	})
	is.True(errors.Is(err, errInjected))

	committed, err := env.legacy.ReadRecords(ctx, "local-1")
	is.NoErr(err)
	is.Equal(len(committed), 1)
}

func TestDeleteAllRecordsReachesBothBackends(t *testing.T) {
	is, ctx, env := testSetup(t)

	start := time.Now().Add(-time.Hour).Truncate(time.Minute)
	is.NoErr(env.pool.CreateRecords(ctx, []types.SensorRecord{
		{MacID: mac, Timestamp: start},
		{MacID: mac, Timestamp: start.Add(30 * time.Minute)},
	}))

	result := env.pool.DeleteAllRecordsBefore(ctx, mac, start.Add(time.Minute))
	is.NoErr(result.Err())
	is.Equal(len(result.Completed), 2)

	remaining, err := env.primary.ReadRecords(ctx, mac)
	is.NoErr(err)
	is.Equal(len(remaining), 1)

	env.primaryFault.deleteRecords = errInjected
	result = env.pool.DeleteAllRecords(ctx, mac)
	is.True(errors.Is(result.Err(), errInjected))
	is.True(result.Ok(string(storage.Legacy)))
	is.True(!result.Ok(string(storage.Primary)))
}

func TestSettingsWritesAreRouted(t *testing.T) {
	is, ctx, env := testSetup(t)

	local := types.Sensor{LUID: "local-1"}

	_, err := env.pool.UpdateDisplaySettings(ctx, local, []string{"temperature"}, false)
	is.NoErr(err)
	_, err = env.pool.SaveSettings(ctx, local, types.SensorSettings{TemperatureOffset: ptr(0.5)})
	is.NoErr(err)

	s, err := env.legacy.ReadSensorSettings(ctx, local)
	is.NoErr(err)
	is.Equal(*s.TemperatureOffset, 0.5)

	is.NoErr(env.pool.DeleteOffsetCorrection(ctx, local))
	s, err = env.legacy.ReadSensorSettings(ctx, local)
	is.NoErr(err)
	is.True(s.TemperatureOffset == nil)

	_, err = env.pool.SaveSubscription(ctx, types.CloudSensorSubscription{MacID: mac, SubscriptionName: "basic"})
	is.NoErr(err)

	sub, err := env.primary.ReadSensorSubscription(ctx, types.Sensor{MacID: mac})
	is.NoErr(err)
	is.Equal(sub.SubscriptionName, "basic")
}

func TestLogoutRemovesOwnedSensorsAndClearsState(t *testing.T) {
	is, ctx, env := testSetup(t)

	owned := []types.Sensor{
		{MacID: mac, IsCloud: true, IsClaimed: true, IsOwner: true},
		{MacID: "AA:BB:CC:DD:EE:00", IsCloud: true},
		{LUID: "local-claimed", IsClaimed: true},
	}
	for _, s := range owned {
		is.NoErr(env.pool.Create(ctx, s))
		is.NoErr(env.pool.CreateLast(ctx, types.SensorRecord{Timestamp: time.Now()}.For(s)))
	}
	is.NoErr(env.pool.Create(ctx, types.Sensor{LUID: "local-unclaimed"}))

	_, err := env.primary.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: mac, Type: types.RequestTypeSensor})
	is.NoErr(err)
	_, err = env.legacy.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "local-claimed", Type: types.RequestTypeUnclaim})
	is.NoErr(err)

	result, err := env.pool.Logout(ctx)
	is.NoErr(err)
	is.NoErr(result.Err())

	remaining, err := env.legacy.ReadAll(ctx)
	is.NoErr(err)
	is.Equal(len(remaining), 1)
	is.Equal(remaining[0].LUID, "local-unclaimed")

	remaining, err = env.primary.ReadAll(ctx)
	is.NoErr(err)
	is.Equal(len(remaining), 0)

	for _, b := range []storage.Backend{env.legacy, env.primary} {
		queued, err := b.ReadQueuedRequests(ctx)
		is.NoErr(err)
		is.Equal(len(queued), 0)
	}

	is.Equal(len(env.localMock.ClearSensorStateCalls()), 3)
	is.Equal(len(env.localMock.ClearGlobalStateCalls()), 1)
	is.True(slices.Contains(env.topics(), "storage.cleared"))
}

func TestLogoutToleratesStorageFailures(t *testing.T) {
	is, ctx, env := testSetup(t)

	is.NoErr(env.pool.Create(ctx, types.Sensor{MacID: mac, IsCloud: true}))
	env.primaryFault.deleteRecords = errInjected

	result, err := env.pool.Logout(ctx)
	is.NoErr(err)
	is.True(errors.Is(result.Err(), errInjected))
	is.Equal(len(env.localMock.ClearGlobalStateCalls()), 1)
}

type testEnv struct {
	pool         PersistencePool
	legacy       storage.Backend
	primary      storage.Backend
	primaryFault *faultyBackend

	local     *localsettings.Store
	localMock *LocalSettingsMock
	keepErr   error

	images   *ImageStoreMock
	imageErr error

	publisher *PublisherMock
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

	local, err := localsettings.New("")
	is.NoErr(err)

	env := &testEnv{
		legacy:       l,
		primary:      p,
		primaryFault: &faultyBackend{Backend: p},
		local:        local,
	}

	env.localMock = &LocalSettingsMock{
		AppendSortOrderFunc:  local.AppendSortOrder,
		RemoveSortOrderFunc:  local.RemoveSortOrder,
		ReplaceSortOrderFunc: local.ReplaceSortOrder,
		SetKeepConnectionFunc: func(sensorID string, keep bool) error {
			if env.keepErr != nil {
				return env.keepErr
			}
			return local.SetKeepConnection(sensorID, keep)
		},
		ClearSensorStateFunc: local.ClearSensorState,
		ClearGlobalStateFunc: local.ClearGlobalState,
	}

	env.images = &ImageStoreMock{
		DeleteCustomBackgroundFunc: func(sensorID string) error {
			return env.imageErr
		},
	}

	env.publisher = &PublisherMock{
		PublishFunc: func(ctx context.Context, message types.Message) error {
			return nil
		},
	}

	env.pool = New(l, env.primaryFault, env.localMock, env.images, WithPublisher(env.publisher), WithFanOut(2))

	return is, ctx, env
}

func (e *testEnv) deletedImages() []string {
	ids := []string{}
	for _, call := range e.images.DeleteCustomBackgroundCalls() {
		ids = append(ids, call.SensorID)
	}
	return ids
}

func (e *testEnv) topics() []string {
	topics := []string{}
	for _, call := range e.publisher.PublishCalls() {
		topics = append(topics, call.Message.TopicName())
	}
	return topics
}

// faultyBackend fails selected operations and passes everything else through.
type faultyBackend struct {
	storage.Backend
	settings      error
	records       error
	deleteRecords error
}

func (f *faultyBackend) DeleteSensorSettings(ctx context.Context, sensor types.Sensor) error {
	if f.settings != nil {
		return f.settings
	}
	return f.Backend.DeleteSensorSettings(ctx, sensor)
}

func (f *faultyBackend) CreateRecords(ctx context.Context, records []types.SensorRecord) error {
	if f.records != nil {
		return f.records
	}
	return f.Backend.CreateRecords(ctx, records)
}

func (f *faultyBackend) DeleteAllRecords(ctx context.Context, sensorID string) error {
	if f.deleteRecords != nil {
		return f.deleteRecords
	}
	return f.Backend.DeleteAllRecords(ctx, sensorID)
}

func ptr[T any](v T) *T {
	return &v
}
