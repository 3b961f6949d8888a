package primary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/matryer/is"
)

const mac = "AA:BB:CC:DD:EE:FF"

func TestCreateAndReadSensorByNetworkIdentifier(t *testing.T) {
	is, ctx, b := testSetup(t)

	is.NoErr(b.Create(ctx, types.Sensor{MacID: mac, Name: "greenhouse", SharedTo: []string{"friend@example.com"}}))

	s, err := b.ReadOne(ctx, mac)
	is.NoErr(err)
	is.Equal(s.ID(), mac)
	is.Equal(s.Name, "greenhouse")
	is.Equal(s.SharedTo, []string{"friend@example.com"})

	_, err = b.ReadOne(ctx, "00:00:00:00:00:00")
	is.True(storage.IsNotFound(err))
}

func TestSensorWithoutNetworkIdentifierIsRejected(t *testing.T) {
	is, ctx, b := testSetup(t)

	err := b.Create(ctx, types.Sensor{LUID: "local-1"})
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	err = b.CreateRecord(ctx, types.SensorRecord{LUID: "local-1", Timestamp: time.Now()})
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	count, err := b.StoredSensorsCount(ctx)
	is.NoErr(err)
	is.Equal(count, int64(0))
}

func TestUpdateAndDeleteSensor(t *testing.T) {
	is, ctx, b := testSetup(t)

	is.NoErr(b.Create(ctx, types.Sensor{MacID: mac, Name: "before"}))
	is.NoErr(b.Update(ctx, types.Sensor{MacID: mac, LUID: "local-1", Name: "after", IsClaimed: true, IsOwner: true}))

	s, err := b.ReadOne(ctx, mac)
	is.NoErr(err)
	is.Equal(s.Name, "after")
	is.Equal(s.LUID, "local-1")
	is.True(s.IsClaimed)

	err = b.Update(ctx, types.Sensor{MacID: "00:00:00:00:00:01"})
	is.True(storage.IsNotFound(err))

	is.NoErr(b.Delete(ctx, s))
	err = b.Delete(ctx, s)
	is.True(storage.IsNotFound(err))

	all, err := b.ReadAll(ctx)
	is.NoErr(err)
	is.Equal(len(all), 0)
}

func TestLastRecordIsUpserted(t *testing.T) {
	is, ctx, b := testSetup(t)

	now := time.Now()
	is.NoErr(b.CreateLast(ctx, types.SensorRecord{MacID: mac, Timestamp: now, Temperature: ptr(1.0)}))

	for i := 1; i <= 5; i++ {
		is.NoErr(b.UpdateLast(ctx, types.SensorRecord{
			MacID:        mac,
			Timestamp:    now.Add(time.Duration(i) * time.Second),
			Temperature:  ptr(float64(i) + 1),
			Acceleration: &types.Acceleration{X: 0.1, Y: 0.2, Z: 0.98},
		}))
	}

	var count int64
	is.NoErr(b.db.QueryRowContext(ctx, `SELECT count(*) FROM last_records WHERE sensor_id = ?`, mac).Scan(&count))
	is.Equal(count, int64(1))

	latest, err := b.ReadLatest(ctx, mac)
	is.NoErr(err)
	is.Equal(*latest.Temperature, 6.0)
	is.Equal(latest.Acceleration.Z, 0.98)
	is.True(latest.Humidity == nil)

	is.NoErr(b.DeleteLast(ctx, mac))
	latest, err = b.ReadLatest(ctx, mac)
	is.NoErr(err)
	is.True(latest == nil)
}

func TestReadLastWindow(t *testing.T) {
	is, ctx, b := testSetup(t)

	ts := time.Now().Add(-10 * time.Second)
	is.NoErr(b.CreateRecord(ctx, types.SensorRecord{MacID: mac, Timestamp: ts, Humidity: ptr(40.0)}))

	records, err := b.ReadLastWindow(ctx, mac, time.Hour)
	is.NoErr(err)
	is.Equal(len(records), 1)
	is.Equal(records[0].Timestamp.UnixMilli(), ts.UnixMilli())

	records, err = b.ReadLastWindow(ctx, mac, time.Second)
	is.NoErr(err)
	is.Equal(len(records), 0)
}

func TestCreateRecordsIsIdempotent(t *testing.T) {
	is, ctx, b := testSetup(t)
	b.batchSize = 4

	records := series(mac, time.Now().Add(-time.Hour).Truncate(time.Minute), 10, time.Minute)
	is.NoErr(b.CreateRecords(ctx, records))
	is.NoErr(b.CreateRecords(ctx, records))

	count, err := b.StoredMeasurementsCount(ctx)
	is.NoErr(err)
	is.Equal(count, int64(10))

	last, err := b.ReadLast(ctx, mac)
	is.NoErr(err)
	is.Equal(last.Timestamp.UnixMilli(), records[9].Timestamp.UnixMilli())
}

func TestCreateRecordsSkipsRepeatsWithinBatch(t *testing.T) {
	is, ctx, b := testSetup(t)

	ts := time.Now().Add(-time.Minute).Truncate(time.Second)
	first := types.SensorRecord{MacID: mac, Timestamp: ts, Temperature: ptr(20.5)}
	repeat := types.SensorRecord{MacID: mac, Timestamp: ts, Temperature: ptr(99.0)}

	is.NoErr(b.CreateRecords(ctx, []types.SensorRecord{first, repeat, first}))

	count, err := b.StoredMeasurementsCount(ctx)
	is.NoErr(err)
	is.Equal(count, int64(1))

	last, err := b.ReadLast(ctx, mac)
	is.NoErr(err)
	is.Equal(*last.Temperature, 20.5)
}

func TestCreateExistingSensorReportsAlreadyExists(t *testing.T) {
	is, ctx, b := testSetup(t)

	is.NoErr(b.Create(ctx, types.Sensor{MacID: mac}))

	err := b.Create(ctx, types.Sensor{MacID: mac})
	is.True(errors.Is(err, storage.ErrAlreadyExists))

	var be *storage.BackendError
	is.True(errors.As(err, &be))
	is.Equal(be.Backend, storage.Primary)
}

func TestReadDownsampled(t *testing.T) {
	is, ctx, b := testSetup(t)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return start.Add(2 * time.Hour) }

	is.NoErr(b.CreateRecords(ctx, series(mac, start, 120, time.Minute)))

	records, err := b.ReadDownsampled(ctx, mac, start, 10, 12)
	is.NoErr(err)
	is.True(len(records) <= 12)
	is.True(len(records) >= 11)
	is.Equal(records[0].Timestamp.UnixMilli(), start.UnixMilli())
	is.True(!records[len(records)-1].Timestamp.Before(start.Add(100 * time.Minute)))

	for i := 1; i < len(records); i++ {
		is.True(records[i].Timestamp.After(records[i-1].Timestamp))
	}
}

func TestReadDownsampledRejectsInvalidPlan(t *testing.T) {
	is, ctx, b := testSetup(t)

	_, err := b.ReadDownsampled(ctx, mac, time.Now().Add(-time.Hour), 0, 0)
	is.True(errors.Is(err, storage.ErrInvalidQuery))
}

func TestReadIntervalAndDeleteBefore(t *testing.T) {
	is, ctx, b := testSetup(t)

	start := time.Now().Add(-time.Hour).Truncate(time.Minute)
	is.NoErr(b.CreateRecords(ctx, series(mac, start, 30, time.Minute)))

	spaced, err := b.ReadInterval(ctx, mac, start.Add(-time.Second), 10*time.Minute)
	is.NoErr(err)
	is.Equal(len(spaced), 3)

	is.NoErr(b.DeleteAllRecordsBefore(ctx, mac, start.Add(20*time.Minute)))

	remaining, err := b.ReadRecords(ctx, mac)
	is.NoErr(err)
	is.Equal(len(remaining), 10)

	is.NoErr(b.DeleteAllRecords(ctx, mac))
	remaining, err = b.ReadRecordsAfter(ctx, mac, start)
	is.NoErr(err)
	is.Equal(len(remaining), 0)
}

func TestOffsetCorrection(t *testing.T) {
	is, ctx, b := testSetup(t)

	sensor := types.Sensor{MacID: mac}
	last := types.SensorRecord{MacID: mac, Timestamp: time.Now(), Pressure: ptr(1013.0)}

	settings, err := b.UpdateOffsetCorrection(ctx, types.OffsetPressure, ptr(-2.0), sensor, &last)
	is.NoErr(err)
	is.Equal(*settings.PressureOffset, -2.0)

	latest, err := b.ReadLatest(ctx, mac)
	is.NoErr(err)
	is.Equal(latest.PressureOffset, -2.0)
	is.Equal(*latest.Pressure, 1013.0)

	_, err = b.UpdateDisplaySettings(ctx, sensor, []string{"pressure"}, true)
	is.NoErr(err)

	stored, err := b.ReadSensorSettings(ctx, sensor)
	is.NoErr(err)
	is.Equal(*stored.PressureOffset, -2.0)
	is.True(stored.PressureOffsetDate != nil)
	is.Equal(stored.DisplayOrder, []string{"pressure"})
	is.True(stored.DefaultDisplayOrder)

	settings, err = b.UpdateOffsetCorrection(ctx, types.OffsetPressure, nil, sensor, nil)
	is.NoErr(err)
	is.True(settings.PressureOffset == nil)

	is.NoErr(b.DeleteSensorSettings(ctx, sensor))
	stored, err = b.ReadSensorSettings(ctx, sensor)
	is.NoErr(err)
	is.True(stored == nil)
}

func TestQueuedRequests(t *testing.T) {
	is, ctx, b := testSetup(t)

	for range 3 {
		_, err := b.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "k1", Type: types.RequestTypeAlertPost, Payload: []byte(`{}`)})
		is.NoErr(err)
	}
	_, err := b.CreateQueuedRequest(ctx, types.QueuedCloudRequest{Key: "k2", Type: types.RequestTypeUnshare})
	is.NoErr(err)

	forKey, err := b.ReadQueuedRequestsForKey(ctx, "k1")
	is.NoErr(err)
	is.Equal(len(forKey), 3)

	forType, err := b.ReadQueuedRequestsForType(ctx, types.RequestTypeAlertPost)
	is.NoErr(err)
	is.Equal(len(forType), 3)

	all, err := b.ReadQueuedRequests(ctx)
	is.NoErr(err)
	is.Equal(len(all), 4)

	is.NoErr(b.DeleteQueuedRequests(ctx))

	all, err = b.ReadQueuedRequests(ctx)
	is.NoErr(err)
	is.Equal(len(all), 0)
}

func TestSubscriptions(t *testing.T) {
	is, ctx, b := testSetup(t)

	endAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := b.SaveSubscription(ctx, types.CloudSensorSubscription{MacID: mac, SubscriptionName: "basic"})
	is.NoErr(err)
	_, err = b.SaveSubscription(ctx, types.CloudSensorSubscription{MacID: mac, SubscriptionName: "pro", PDFExportAllowed: true, EndAt: &endAt})
	is.NoErr(err)

	sub, err := b.ReadSensorSubscription(ctx, types.Sensor{MacID: mac})
	is.NoErr(err)
	is.Equal(sub.SubscriptionName, "pro")
	is.True(sub.PDFExportAllowed)
	is.True(sub.EndAt.Equal(endAt))

	sub, err = b.ReadSensorSubscription(ctx, types.Sensor{MacID: "00:00:00:00:00:00"})
	is.NoErr(err)
	is.True(sub == nil)
}

func testSetup(t *testing.T) (*is.I, context.Context, *Backend) {
	is := is.New(t)
	ctx := context.Background()

	b, err := New(ctx, "")
	is.NoErr(err)

	t.Cleanup(func() { b.Close() })

	return is, ctx, b
}

func series(macID string, start time.Time, n int, step time.Duration) []types.SensorRecord {
	records := make([]types.SensorRecord, 0, n)
	for i := range n {
		records = append(records, types.SensorRecord{
			MacID:       macID,
			Timestamp:   start.Add(time.Duration(i) * step),
			Source:      types.SourceCloud,
			Temperature: ptr(20 + float64(i)/10),
		})
	}
	return records
}

func ptr[T any](v T) *T {
	return &v
}
