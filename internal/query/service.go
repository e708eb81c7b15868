// Package query is the read/write façade over the history cache. Application
// code goes through a Service and never talks to the store directly.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jwulff/livehistory/internal/chunk"
	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/storage"
)

// Service routes history requests to the store by kind.
// Sensor type lists are cached in memory and invalidated on every write or
// clear that touches the sensor.
type Service struct {
	store  storage.Store
	config Config
	log    *slog.Logger
	types  *expirable.LRU[int64, []history.SensorType]

	// typesGen is bumped per sensor on every invalidation. A type lookup only
	// fills the cache when the generation it started with is still current.
	typesMu  sync.Mutex
	typesGen map[int64]uint64
}

// New creates a Service over store.
func New(store storage.Store, c Config, log *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("query: store is required")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		config: c,
		log:    log,
		types:  expirable.NewLRU[int64, []history.SensorType](c.TypesCacheSize, nil, c.TypesCacheTTL),

		typesGen: make(map[int64]uint64),
	}, nil
}

// Payload carries the remote records of one owner. Only the slice matching
// the kind being stored is read.
type Payload struct {
	OwnerID int64
	Device  []history.DeviceRecord
	Sensor  []history.SensorRecord
}

// Query selects history rows of one owner. For sensors, setting Type selects
// one measurement kind between From and To (inclusive; To == 0 means no upper
// bound). Without Type every row of the owner is returned.
type Query struct {
	OwnerID int64
	Type    string
	Scale   string
	From    int64
	To      int64
}

// History is the result of GetHistory. Only the slice matching Kind is set.
type History struct {
	Kind   history.Kind          `json:"kind" yaml:"kind"`
	Device []history.DeviceEntry `json:"device,omitempty" yaml:"device,omitempty"`
	Sensor []history.SensorEntry `json:"sensor,omitempty" yaml:"sensor,omitempty"`
}

// Len returns the number of rows.
func (h History) Len() int {
	return len(h.Device) + len(h.Sensor)
}

// StoreHistory writes the payload in chunks of at most ChunkSize rows, one
// transaction per chunk, in order. It returns the number of rows written.
// A failed chunk is rolled back and stops the write; earlier chunks stay.
func (s *Service) StoreHistory(ctx context.Context, kind history.Kind, p Payload) (int, error) {
	switch kind {
	case history.KindDevice:
		entries := history.DeviceEntries(p.OwnerID, p.Device)
		return writeChunks(ctx, entries, s.config.ChunkSize, s.store.UpsertDevices)

	case history.KindSensor:
		entries := history.SensorEntries(p.OwnerID, p.Sensor)
		defer s.invalidateTypes(p.OwnerID)
		return writeChunks(ctx, entries, s.config.ChunkSize, s.store.UpsertSensors)

	default:
		return 0, fmt.Errorf("store history: %w: %q", history.ErrUnknownKind, kind)
	}
}

func writeChunks[T any](ctx context.Context, entries []T, size int, upsert func(context.Context, []T) error) (int, error) {
	written := 0
	for _, c := range chunk.Split(entries, size) {
		if err := upsert(ctx, c); err != nil {
			return written, fmt.Errorf("failed to store chunk at row %d: %w", written, err)
		}
		written += len(c)
	}
	return written, nil
}

// GetHistory returns the cached rows selected by q, newest first.
func (s *Service) GetHistory(ctx context.Context, kind history.Kind, q Query) (History, error) {
	switch kind {
	case history.KindDevice:
		entries, err := s.store.DeviceHistory(ctx, q.OwnerID)
		if err != nil {
			return History{}, fmt.Errorf("device %d history: %w", q.OwnerID, err)
		}
		return History{Kind: kind, Device: entries}, nil

	case history.KindSensor:
		var entries []history.SensorEntry
		var err error
		if q.Type != "" {
			to := q.To
			if to == 0 {
				to = math.MaxInt64
			}
			entries, err = s.store.SensorRange(ctx, storage.SensorRange{
				SensorID: q.OwnerID,
				Type:     q.Type,
				Scale:    q.Scale,
				From:     q.From,
				To:       to,
			})
		} else {
			entries, err = s.store.SensorHistory(ctx, q.OwnerID)
		}
		if err != nil {
			return History{}, fmt.Errorf("sensor %d history: %w", q.OwnerID, err)
		}
		return History{Kind: kind, Sensor: entries}, nil

	default:
		return History{}, fmt.Errorf("get history: %w: %q", history.ErrUnknownKind, kind)
	}
}

// GetSensorTypes lists the measurement kinds a sensor has reported.
func (s *Service) GetSensorTypes(ctx context.Context, sensorID int64) ([]history.SensorType, error) {
	if types, ok := s.types.Get(sensorID); ok {
		return slices.Clone(types), nil
	}

	s.typesMu.Lock()
	gen := s.typesGen[sensorID]
	s.typesMu.Unlock()

	types, err := s.store.SensorTypes(ctx, sensorID)
	if err != nil {
		return nil, fmt.Errorf("sensor %d types: %w", sensorID, err)
	}

	s.typesMu.Lock()
	if s.typesGen[sensorID] == gen {
		s.types.Add(sensorID, slices.Clone(types))
	}
	s.typesMu.Unlock()
	return types, nil
}

// invalidateTypes drops the cached type list of a sensor and keeps any
// lookup already in flight from caching what it read.
func (s *Service) invalidateTypes(sensorID int64) {
	s.typesMu.Lock()
	defer s.typesMu.Unlock()
	s.typesGen[sensorID]++
	s.types.Remove(sensorID)
}

// GetLatestTimestamp returns the newest cached ts of an owner. The bool is
// false when nothing is cached for it.
func (s *Service) GetLatestTimestamp(ctx context.Context, kind history.Kind, ownerID int64) (int64, bool, error) {
	table, err := storage.TableFor(kind)
	if err != nil {
		return 0, false, fmt.Errorf("latest timestamp: %w", err)
	}
	return s.store.LatestTimestamp(ctx, table, ownerID)
}

// ClearHistory deletes every cached row of one owner.
func (s *Service) ClearHistory(ctx context.Context, kind history.Kind, ownerID int64) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if kind == history.KindSensor {
		defer s.invalidateTypes(ownerID)
	}
	if err := s.store.Clear(ctx, table, ownerID); err != nil {
		return fmt.Errorf("clear %s %d: %w", kind, ownerID, err)
	}
	s.log.Debug("history cleared", "kind", kind, "owner", ownerID)
	return nil
}

// CloseDatabase releases the database handle. The next call reopens it.
func (s *Service) CloseDatabase() error {
	s.types.Purge()
	return s.store.Close()
}

// StoreGeoFenceEvent logs one geofence crossing.
func (s *Service) StoreGeoFenceEvent(ctx context.Context, event history.GeoFenceEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return s.store.UpsertGeoFenceEvents(ctx, []history.GeoFenceEvent{event})
}

// GetGeoFenceEvents returns every logged geofence event, newest first.
func (s *Service) GetGeoFenceEvents(ctx context.Context) ([]history.GeoFenceEvent, error) {
	return s.store.GeoFenceEvents(ctx)
}

// GetGeoFenceEventsFor returns the events of one geofence, newest first.
func (s *Service) GetGeoFenceEventsFor(ctx context.Context, identifier string) ([]history.GeoFenceEvent, error) {
	return s.store.GeoFenceEventsFor(ctx, identifier)
}

// ClearGeoFence deletes the events of one geofence.
func (s *Service) ClearGeoFence(ctx context.Context, identifier string) error {
	return s.store.ClearGeoFence(ctx, identifier)
}

// ClearGeoFenceEvents deletes the whole geofence log.
func (s *Service) ClearGeoFenceEvents(ctx context.Context) error {
	return s.store.ClearAll(ctx, storage.GeoFenceEvents)
}

// SyncState returns the sync bookkeeping of an owner.
func (s *Service) SyncState(ctx context.Context, kind history.Kind, ownerID int64) (*storage.SyncState, error) {
	return s.store.GetSyncState(ctx, kind, ownerID)
}

// SaveSyncState persists the sync bookkeeping of an owner.
func (s *Service) SaveSyncState(ctx context.Context, state *storage.SyncState) error {
	return s.store.SaveSyncState(ctx, state)
}

// SyncStates lists the sync bookkeeping of every owner.
func (s *Service) SyncStates(ctx context.Context) ([]*storage.SyncState, error) {
	return s.store.SyncStates(ctx)
}
