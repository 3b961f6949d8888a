package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/legacy"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/primary"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/matryer/is"
)

const mac = "AA:BB:CC:DD:EE:FF"

func TestReadOneOnlyConsultsPrimary(t *testing.T) {
	is, ctx, c, l, p := testSetup(t)

	is.NoErr(p.Create(ctx, types.Sensor{MacID: mac, Name: "cloud"}))
	is.NoErr(l.Create(ctx, types.Sensor{LUID: "local-1", Name: "local"}))

	s, err := c.ReadOne(ctx, mac)
	is.NoErr(err)
	is.Equal(s.ID(), mac)

	_, err = c.ReadOne(ctx, "local-1")
	is.True(storage.IsNotFound(err))

	var re *ReadError
	is.True(errors.As(err, &re))
	is.Equal(re.Op, "read one")
}

func TestReadAllUnionsBothBackends(t *testing.T) {
	is, ctx, c, l, p := testSetup(t)

	is.NoErr(p.Create(ctx, types.Sensor{MacID: mac, IsCloud: true, IsClaimed: true, IsOwner: true}))
	is.NoErr(p.Create(ctx, types.Sensor{MacID: "AA:BB:CC:DD:EE:00", IsCloud: true, IsClaimed: true}))
	is.NoErr(l.Create(ctx, types.Sensor{LUID: "local-1"}))

	all, err := c.ReadAll(ctx)
	is.NoErr(err)
	is.Equal(len(all), 3)

	claimed, err := c.ClaimedSensorsCount(ctx)
	is.NoErr(err)
	is.Equal(claimed, 1)

	offline, err := c.OfflineSensorsCount(ctx)
	is.NoErr(err)
	is.Equal(offline, 1)

	stored, err := c.StoredSensorsCount(ctx)
	is.NoErr(err)
	is.Equal(stored, int64(3))
}

func TestSensorKeyedReadsRequireNetworkIdentifier(t *testing.T) {
	is, ctx, c, _, _ := testSetup(t)

	local := types.Sensor{LUID: "local-1"}

	_, err := c.ReadLast(ctx, local)
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	_, err = c.ReadLatest(ctx, local)
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	_, err = c.ReadSensorSettings(ctx, local)
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	_, err = c.ReadSensorSubscription(ctx, local)
	is.True(errors.Is(err, storage.ErrInvalidQuery))

	_, err = c.ReadDownsampled(ctx, "", time.Now().Add(-time.Hour), 10, 12)
	is.True(errors.Is(err, storage.ErrInvalidQuery))
}

func TestDelegatedReads(t *testing.T) {
	is, ctx, c, _, p := testSetup(t)

	sensor := types.Sensor{MacID: mac}
	start := time.Now().Add(-time.Hour).Truncate(time.Minute)

	records := make([]types.SensorRecord, 0, 30)
	for i := range 30 {
		records = append(records, types.SensorRecord{MacID: mac, Timestamp: start.Add(time.Duration(i) * time.Minute)})
	}
	is.NoErr(p.CreateRecords(ctx, records))
	is.NoErr(p.CreateLast(ctx, records[29]))

	all, err := c.ReadAllRecords(ctx, mac, start.Add(-time.Second))
	is.NoErr(err)
	is.Equal(len(all), 30)

	spaced, err := c.Read(ctx, mac, start.Add(-time.Second), 15*time.Minute)
	is.NoErr(err)
	is.Equal(len(spaced), 2)

	last, err := c.ReadLast(ctx, sensor)
	is.NoErr(err)
	is.Equal(last.Timestamp.UnixMilli(), records[29].Timestamp.UnixMilli())

	latest, err := c.ReadLatest(ctx, sensor)
	is.NoErr(err)
	is.Equal(latest.Timestamp.UnixMilli(), records[29].Timestamp.UnixMilli())

	window, err := c.ReadLastWindow(ctx, mac, 2*time.Hour)
	is.NoErr(err)
	is.Equal(len(window), 30)

	count, err := c.StoredMeasurementsCount(ctx)
	is.NoErr(err)
	is.Equal(count, int64(30))

	settings, err := c.ReadSensorSettings(ctx, sensor)
	is.NoErr(err)
	is.True(settings == nil)
}

func testSetup(t *testing.T) (*is.I, context.Context, StorageCoordinator, storage.Backend, storage.Backend) {
	is := is.New(t)
	ctx := context.Background()

	l, err := legacy.New(database.NewSQLiteConnector(ctx, ""))
	is.NoErr(err)
	t.Cleanup(func() { l.Close() })

	p, err := primary.New(ctx, "")
	is.NoErr(err)
	t.Cleanup(func() { p.Close() })

	return is, ctx, New(l, p, true), l, p
}
