// Package storage provides the storage abstractions for the history cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/livehistory/internal/history"
)

// Table names one of the cached collections. The names are versioned so a
// schema change ships as a new table rather than an in-place ALTER.
type Table string

const (
	DeviceHistory  Table = "DeviceHistory1_1"
	SensorHistory  Table = "SensorHistory"
	GeoFenceEvents Table = "GeoFenceEvents"
)

// Tables lists every cached collection.
var Tables = []Table{DeviceHistory, SensorHistory, GeoFenceEvents}

// TableFor returns the table that backs a history kind.
func TableFor(kind history.Kind) (Table, error) {
	switch kind {
	case history.KindDevice:
		return DeviceHistory, nil
	case history.KindSensor:
		return SensorHistory, nil
	default:
		return "", fmt.Errorf("%w: %q", history.ErrUnknownKind, kind)
	}
}

// Store is the interface for the persistent history cache.
// Every method opens the underlying database on demand, including after Close.
type Store interface {
	// Schema
	EnsureSchema(ctx context.Context) error
	DropAll(ctx context.Context, table Table) error

	// Writes. Each call is a single transaction.
	UpsertDevices(ctx context.Context, entries []history.DeviceEntry) error
	UpsertSensors(ctx context.Context, entries []history.SensorEntry) error
	UpsertGeoFenceEvents(ctx context.Context, events []history.GeoFenceEvent) error

	// Reads
	DeviceHistory(ctx context.Context, deviceID int64) ([]history.DeviceEntry, error)
	SensorHistory(ctx context.Context, sensorID int64) ([]history.SensorEntry, error)
	SensorRange(ctx context.Context, r SensorRange) ([]history.SensorEntry, error)
	SensorTypes(ctx context.Context, sensorID int64) ([]history.SensorType, error)
	LatestTimestamp(ctx context.Context, table Table, ownerID int64) (int64, bool, error)
	GeoFenceEvents(ctx context.Context) ([]history.GeoFenceEvent, error)
	GeoFenceEventsFor(ctx context.Context, identifier string) ([]history.GeoFenceEvent, error)
	Count(ctx context.Context, table Table) (int, error)

	// Deletes
	Clear(ctx context.Context, table Table, ownerID int64) error
	ClearGeoFence(ctx context.Context, identifier string) error
	ClearAll(ctx context.Context, table Table) error

	// Sync bookkeeping
	SaveSyncState(ctx context.Context, state *SyncState) error
	GetSyncState(ctx context.Context, kind history.Kind, ownerID int64) (*SyncState, error)
	SyncStates(ctx context.Context) ([]*SyncState, error)

	// Lifecycle
	Close() error
}

// SensorRange selects one measurement kind of a sensor between two
// timestamps, both inclusive.
type SensorRange struct {
	SensorID int64
	Type     string
	Scale    string
	From     int64
	To       int64
}

// SyncState records the outcome of the most recent syncs for one owner.
type SyncState struct {
	Kind        history.Kind `json:"kind" yaml:"kind"`
	OwnerID     int64        `json:"ownerId" yaml:"ownerId"`
	RunID       string       `json:"runId" yaml:"runId"`
	LastRun     time.Time    `json:"lastRun" yaml:"lastRun"`
	LastSuccess time.Time    `json:"lastSuccess" yaml:"lastSuccess"`
	LastFetched int          `json:"lastFetched" yaml:"lastFetched"`
	ErrorCount  int          `json:"errorCount" yaml:"errorCount"`
	LastError   string       `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// NewSyncState creates an empty sync state for an owner.
func NewSyncState(kind history.Kind, ownerID int64) *SyncState {
	return &SyncState{Kind: kind, OwnerID: ownerID}
}

// RecordSuccess records a sync that fetched n records.
func (s *SyncState) RecordSuccess(runID string, n int) {
	now := time.Now()
	s.RunID = runID
	s.LastRun = now
	s.LastSuccess = now
	s.LastFetched = n
	s.ErrorCount = 0
	s.LastError = ""
}

// RecordError records a failed sync.
func (s *SyncState) RecordError(runID string, errMsg string) {
	s.RunID = runID
	s.LastRun = time.Now()
	s.LastFetched = 0
	s.ErrorCount++
	s.LastError = errMsg
}

// ErrUnsupportedTable is returned when an operation does not apply to a table.
var ErrUnsupportedTable = errors.New("unsupported table")

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
