package query

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/storage"
	"github.com/jwulff/livehistory/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts calls and can fail sensor upserts after a number of calls.
type countingStore struct {
	storage.Store
	typesCalls   int
	upsertCalls  int
	failUpsertAt int
}

func (s *countingStore) SensorTypes(ctx context.Context, sensorID int64) ([]history.SensorType, error) {
	s.typesCalls++
	return s.Store.SensorTypes(ctx, sensorID)
}

func (s *countingStore) UpsertSensors(ctx context.Context, entries []history.SensorEntry) error {
	s.upsertCalls++
	if s.failUpsertAt > 0 && s.upsertCalls == s.failUpsertAt {
		return errors.New("disk full")
	}
	return s.Store.UpsertSensors(ctx, entries)
}

// pausingStore holds SensorTypes after its query until release is closed.
type pausingStore struct {
	storage.Store
	queried chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingStore) SensorTypes(ctx context.Context, sensorID int64) ([]history.SensorType, error) {
	types, err := s.Store.SensorTypes(ctx, sensorID)
	s.once.Do(func() {
		close(s.queried)
		<-s.release
	})
	return types, err
}

func newTestService(t *testing.T) (*Service, *countingStore) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	counting := &countingStore{Store: store}
	service, err := New(counting, NewConfig(), nil)
	require.NoError(t, err)
	return service, counting
}

func sensorRecords(n int, types ...string) []history.SensorRecord {
	records := make([]history.SensorRecord, n)
	for i := range records {
		records[i].TS = int64(1000 + i)
		for _, typ := range types {
			records[i].Data = append(records[i].Data, history.SensorDatum{Name: typ, Value: history.FlexFloat(i), Scale: "0"})
		}
	}
	return records
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, NewConfig(), nil)
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)

	c := NewConfig()
	c.ChunkSize = 0
	_, err = New(store, c, nil)
	assert.Error(t, err)
}

func TestStoreAndGetDeviceHistory(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	n, err := service.StoreHistory(ctx, history.KindDevice, Payload{
		OwnerID: 5,
		Device: []history.DeviceRecord{
			{TS: 100, State: 1, Origin: "A"},
			{TS: 200, State: 2, Origin: "A"},
			{TS: 150, State: 1, Origin: "B"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := service.GetHistory(ctx, history.KindDevice, Query{OwnerID: 5})
	require.NoError(t, err)
	assert.Equal(t, history.KindDevice, got.Kind)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, int64(200), got.Device[0].TS)
	assert.Equal(t, int64(5), got.Device[0].DeviceID)

	latest, ok, err := service.GetLatestTimestamp(ctx, history.KindDevice, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(200), latest)
}

func TestStoreHistoryChunks(t *testing.T) {
	service, counting := newTestService(t)
	ctx := context.Background()

	n, err := service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 9, Sensor: sensorRecords(450, "temp")})
	require.NoError(t, err)
	assert.Equal(t, 450, n)
	assert.Equal(t, 3, counting.upsertCalls)

	got, err := service.GetHistory(ctx, history.KindSensor, Query{OwnerID: 9})
	require.NoError(t, err)
	assert.Len(t, got.Sensor, 450)
}

func TestStoreHistoryStopsAtFailedChunk(t *testing.T) {
	service, counting := newTestService(t)
	counting.failUpsertAt = 2
	ctx := context.Background()

	n, err := service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 9, Sensor: sensorRecords(450, "temp")})
	require.Error(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, 2, counting.upsertCalls)

	got, err := service.GetHistory(ctx, history.KindSensor, Query{OwnerID: 9})
	require.NoError(t, err)
	assert.Len(t, got.Sensor, 200)
}

func TestGetSensorHistoryRange(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 1, Sensor: sensorRecords(10, "temp", "humidity")})
	require.NoError(t, err)

	got, err := service.GetHistory(ctx, history.KindSensor, Query{OwnerID: 1, Type: "temp", Scale: "0", From: 1003, To: 1005})
	require.NoError(t, err)
	require.Len(t, got.Sensor, 3)
	assert.Equal(t, int64(1005), got.Sensor[0].TS)
	assert.Equal(t, int64(1003), got.Sensor[2].TS)

	open, err := service.GetHistory(ctx, history.KindSensor, Query{OwnerID: 1, Type: "humidity", Scale: "0", From: 1008})
	require.NoError(t, err)
	assert.Len(t, open.Sensor, 2)
}

func TestGetSensorTypesIsCachedAndInvalidated(t *testing.T) {
	service, counting := newTestService(t)
	ctx := context.Background()

	_, err := service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 1, Sensor: sensorRecords(2, "temp", history.WindDirection)})
	require.NoError(t, err)

	types, err := service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []history.SensorType{{Type: "temp", Scale: "0"}}, types)

	_, err = service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.typesCalls)

	_, err = service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 1, Sensor: sensorRecords(1, "humidity")})
	require.NoError(t, err)

	types, err = service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.typesCalls)
	assert.Len(t, types, 2)

	require.NoError(t, service.ClearHistory(ctx, history.KindSensor, 1))
	types, err = service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestGetSensorTypesSkipsCachingReadOverlappingWrite(t *testing.T) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	paused := &pausingStore{Store: store, queried: make(chan struct{}), release: make(chan struct{})}
	service, err := New(paused, NewConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 9, Sensor: sensorRecords(1, "temp")})
	require.NoError(t, err)

	done := make(chan []history.SensorType)
	go func() {
		types, err := service.GetSensorTypes(ctx, 9)
		assert.NoError(t, err)
		done <- types
	}()

	<-paused.queried
	_, err = service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 9, Sensor: sensorRecords(1, "humidity")})
	require.NoError(t, err)
	close(paused.release)

	assert.Equal(t, []history.SensorType{{Type: "temp", Scale: "0"}}, <-done)

	types, err := service.GetSensorTypes(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []history.SensorType{{Type: "humidity", Scale: "0"}, {Type: "temp", Scale: "0"}}, types)
}

func TestGetSensorTypesReturnsCopies(t *testing.T) {
	service, counting := newTestService(t)
	ctx := context.Background()

	_, err := service.StoreHistory(ctx, history.KindSensor, Payload{OwnerID: 1, Sensor: sensorRecords(1, "temp")})
	require.NoError(t, err)

	first, err := service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	first[0].Type = "changed"

	second, err := service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	second[0].Scale = "changed"

	third, err := service.GetSensorTypes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []history.SensorType{{Type: "temp", Scale: "0"}}, third)
	assert.Equal(t, 1, counting.typesCalls)
}

func TestLatestTimestampNoneForEmptyOwner(t *testing.T) {
	service, _ := newTestService(t)

	latest, ok, err := service.GetLatestTimestamp(context.Background(), history.KindSensor, 42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, latest)
}

func TestClearHistoryIsolatesOwners(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for _, owner := range []int64{1, 2} {
		_, err := service.StoreHistory(ctx, history.KindDevice, Payload{
			OwnerID: owner,
			Device:  []history.DeviceRecord{{TS: 10, State: 1, Origin: "A"}},
		})
		require.NoError(t, err)
	}

	require.NoError(t, service.ClearHistory(ctx, history.KindDevice, 1))

	got, err := service.GetHistory(ctx, history.KindDevice, Query{OwnerID: 1})
	require.NoError(t, err)
	assert.Zero(t, got.Len())

	got, err = service.GetHistory(ctx, history.KindDevice, Query{OwnerID: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestUnknownKind(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	kind := history.Kind("thermostat")

	_, err := service.StoreHistory(ctx, kind, Payload{OwnerID: 1})
	assert.ErrorIs(t, err, history.ErrUnknownKind)

	_, err = service.GetHistory(ctx, kind, Query{OwnerID: 1})
	assert.ErrorIs(t, err, history.ErrUnknownKind)

	_, _, err = service.GetLatestTimestamp(ctx, kind, 1)
	assert.ErrorIs(t, err, history.ErrUnknownKind)

	err = service.ClearHistory(ctx, kind, 1)
	assert.ErrorIs(t, err, history.ErrUnknownKind)
}

func TestCloseDatabaseReopens(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.CloseDatabase())

	_, ok, err := service.GetLatestTimestamp(ctx, history.KindDevice, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGeoFenceEvents(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.StoreGeoFenceEvent(ctx, history.GeoFenceEvent{
		Identifier: "home", Action: "enter", Title: "Home", Timestamp: "1", InAppTime: "10",
	}))
	require.NoError(t, service.StoreGeoFenceEvent(ctx, history.GeoFenceEvent{
		Identifier: "home", Action: "exit", Title: "Home", Timestamp: "2", InAppTime: "20",
	}))
	assert.Error(t, service.StoreGeoFenceEvent(ctx, history.GeoFenceEvent{Action: "enter"}))

	events, err := service.GetGeoFenceEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "exit", events[0].Action)

	require.NoError(t, service.StoreGeoFenceEvent(ctx, history.GeoFenceEvent{
		Identifier: "work", Action: "enter", Title: "Work", InAppTime: "30",
	}))
	work, err := service.GetGeoFenceEventsFor(ctx, "work")
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, "Work", work[0].Title)

	require.NoError(t, service.ClearGeoFence(ctx, "home"))
	events, err = service.GetGeoFenceEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "work", events[0].Identifier)

	require.NoError(t, service.ClearGeoFenceEvents(ctx))
	events, err = service.GetGeoFenceEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
