// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/storage"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
//
// The database is opened lazily by the first operation and reopened by the
// first operation after Close. Concurrent callers share a single open.
type Store struct {
	config Config
	log    *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	opens  singleflight.Group
	opened atomic.Int64
}

// New creates a store for the given config. No connection is made until the
// first operation.
func New(c Config, log *slog.Logger) (*Store, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{config: c, log: log}, nil
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	c := NewConfig()
	c.Path = MemoryPath
	return New(c, nil)
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	c := NewConfig()
	c.Path = path
	return New(c, nil)
}

// conn returns the open database, opening it if needed.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := s.opens.Do("open", func() (any, error) {
		s.mu.Lock()
		if s.db != nil {
			db := s.db
			s.mu.Unlock()
			return db, nil
		}
		s.mu.Unlock()

		// The open is shared, so it must not die with the first caller's context.
		db, err := s.open(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if s.config.inMemory() {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.config.MaxOpenConns)
		db.SetMaxIdleConns(s.config.MaxOpenConns)
		db.SetConnMaxIdleTime(30 * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db, s.log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	s.opened.Add(1)
	s.log.Debug("history database opened", "path", s.config.Path)
	return db, nil
}

// Close closes the database connection. The next operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Schema methods

func (s *Store) EnsureSchema(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// DropAll drops a table and recreates it empty.
func (s *Store) DropAll(ctx context.Context, table storage.Table) error {
	if _, err := ownerColumn(table); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+string(table)+`"`); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	return s.EnsureSchema(ctx)
}

// Write methods

func (s *Store) UpsertDevices(ctx context.Context, entries []history.DeviceEntry) error {
	return s.upsert(ctx, `
		INSERT OR REPLACE INTO DeviceHistory1_1
			(ts, deviceId, state, stateValue, origin, successStatus, title, description, color, icon, class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(entries), func(i int) []any {
		e := entries[i]
		return []any{e.TS, e.DeviceID, e.State, e.StateValue, e.Origin, e.SuccessStatus,
			e.Title, e.Description, e.Color, e.Icon, e.Class}
	})
}

func (s *Store) UpsertSensors(ctx context.Context, entries []history.SensorEntry) error {
	return s.upsert(ctx, `
		INSERT OR REPLACE INTO SensorHistory (ts, sensorId, type, value, scale)
		VALUES (?, ?, ?, ?, ?)
	`, len(entries), func(i int) []any {
		e := entries[i]
		return []any{e.TS, e.SensorID, e.Type, e.Value, e.Scale}
	})
}

func (s *Store) UpsertGeoFenceEvents(ctx context.Context, events []history.GeoFenceEvent) error {
	return s.upsert(ctx, `
		INSERT OR REPLACE INTO GeoFenceEvents (identifier, "action", title, timestamp, inAppTime)
		VALUES (?, ?, ?, ?, ?)
	`, len(events), func(i int) []any {
		e := events[i]
		return []any{e.Identifier, e.Action, e.Title, e.Timestamp, e.InAppTime}
	})
}

// upsert executes query once per row inside a single transaction.
func (s *Store) upsert(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to upsert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Read methods

func (s *Store) DeviceHistory(ctx context.Context, deviceID int64) ([]history.DeviceEntry, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts, deviceId, state, stateValue, origin, successStatus, title, description, color, icon, class
		FROM DeviceHistory1_1 WHERE deviceId = ?
		ORDER BY ts DESC, id DESC
	`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []history.DeviceEntry
	for rows.Next() {
		var e history.DeviceEntry
		var stateValue, title, description, color, icon, class sql.NullString
		var successStatus sql.NullInt64
		if err := rows.Scan(&e.TS, &e.DeviceID, &e.State, &stateValue, &e.Origin, &successStatus,
			&title, &description, &color, &icon, &class); err != nil {
			return nil, err
		}
		e.StateValue = stateValue.String
		e.SuccessStatus = int(successStatus.Int64)
		e.Title = title.String
		e.Description = description.String
		e.Color = color.String
		e.Icon = icon.String
		e.Class = class.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) SensorHistory(ctx context.Context, sensorID int64) ([]history.SensorEntry, error) {
	return s.querySensors(ctx, `
		SELECT ts, sensorId, type, value, scale FROM SensorHistory
		WHERE sensorId = ?
		ORDER BY ts DESC, id DESC
	`, sensorID)
}

func (s *Store) SensorRange(ctx context.Context, r storage.SensorRange) ([]history.SensorEntry, error) {
	return s.querySensors(ctx, `
		SELECT ts, sensorId, type, value, scale FROM SensorHistory
		WHERE sensorId = ? AND type = ? AND scale = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC, id DESC
	`, r.SensorID, r.Type, r.Scale, r.From, r.To)
}

func (s *Store) querySensors(ctx context.Context, query string, args ...any) ([]history.SensorEntry, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []history.SensorEntry
	for rows.Next() {
		var e history.SensorEntry
		var value sql.NullFloat64
		if err := rows.Scan(&e.TS, &e.SensorID, &e.Type, &value, &e.Scale); err != nil {
			return nil, err
		}
		e.Value = value.Float64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SensorTypes lists the distinct (type, scale) pairs a sensor has reported,
// leaving out wind direction.
func (s *Store) SensorTypes(ctx context.Context, sensorID int64) ([]history.SensorType, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT type, scale FROM SensorHistory
		WHERE sensorId = ? AND type != ?
		ORDER BY type, scale
	`, sensorID, history.WindDirection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []history.SensorType
	for rows.Next() {
		var st history.SensorType
		if err := rows.Scan(&st.Type, &st.Scale); err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

// LatestTimestamp returns the newest ts stored for an owner. The bool is
// false when the owner has no rows.
func (s *Store) LatestTimestamp(ctx context.Context, table storage.Table, ownerID int64) (int64, bool, error) {
	if table != storage.DeviceHistory && table != storage.SensorHistory {
		return 0, false, fmt.Errorf("latest timestamp of %s: %w", table, storage.ErrUnsupportedTable)
	}
	column, _ := ownerColumn(table)

	db, err := s.conn(ctx)
	if err != nil {
		return 0, false, err
	}

	var latest sql.NullInt64
	err = db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM `+string(table)+` WHERE `+column+` = ?`, ownerID,
	).Scan(&latest)
	if err != nil {
		return 0, false, err
	}
	return latest.Int64, latest.Valid, nil
}

func (s *Store) GeoFenceEvents(ctx context.Context) ([]history.GeoFenceEvent, error) {
	return s.queryGeoFence(ctx, `
		SELECT identifier, "action", title, timestamp, inAppTime FROM GeoFenceEvents
		ORDER BY CAST(inAppTime AS INTEGER) DESC, id DESC
	`)
}

func (s *Store) GeoFenceEventsFor(ctx context.Context, identifier string) ([]history.GeoFenceEvent, error) {
	return s.queryGeoFence(ctx, `
		SELECT identifier, "action", title, timestamp, inAppTime FROM GeoFenceEvents
		WHERE identifier = ?
		ORDER BY CAST(inAppTime AS INTEGER) DESC, id DESC
	`, identifier)
}

func (s *Store) queryGeoFence(ctx context.Context, query string, args ...any) ([]history.GeoFenceEvent, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []history.GeoFenceEvent
	for rows.Next() {
		var e history.GeoFenceEvent
		var action, title sql.NullString
		if err := rows.Scan(&e.Identifier, &action, &title, &e.Timestamp, &e.InAppTime); err != nil {
			return nil, err
		}
		e.Action = action.String
		e.Title = title.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) Count(ctx context.Context, table storage.Table) (int, error) {
	if _, err := ownerColumn(table); err != nil {
		return 0, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(table)).Scan(&count)
	return count, err
}

// Delete methods

// Clear deletes every row of one device or sensor.
func (s *Store) Clear(ctx context.Context, table storage.Table, ownerID int64) error {
	if table != storage.DeviceHistory && table != storage.SensorHistory {
		return fmt.Errorf("clear %s by numeric owner: %w", table, storage.ErrUnsupportedTable)
	}
	column, _ := ownerColumn(table)
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM `+string(table)+` WHERE `+column+` = ?`, ownerID)
	return err
}

func (s *Store) ClearGeoFence(ctx context.Context, identifier string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM GeoFenceEvents WHERE identifier = ?", identifier)
	return err
}

// ClearAll deletes every row of a table, keeping the table.
func (s *Store) ClearAll(ctx context.Context, table storage.Table) error {
	if _, err := ownerColumn(table); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM `+string(table))
	return err
}

// Sync state methods

func (s *Store) SaveSyncState(ctx context.Context, state *storage.SyncState) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO SyncState
			(kind, owner_id, run_id, last_run, last_success, last_fetched, error_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(state.Kind), state.OwnerID, state.RunID, unixMilli(state.LastRun), unixMilli(state.LastSuccess),
		state.LastFetched, state.ErrorCount, state.LastError)
	return err
}

func (s *Store) GetSyncState(ctx context.Context, kind history.Kind, ownerID int64) (*storage.SyncState, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT kind, owner_id, run_id, last_run, last_success, last_fetched, error_count, last_error
		FROM SyncState WHERE kind = ? AND owner_id = ?
	`, string(kind), ownerID)

	state, err := scanSyncState(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "sync_state", ID: fmt.Sprintf("%s:%d", kind, ownerID)}
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) SyncStates(ctx context.Context) ([]*storage.SyncState, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT kind, owner_id, run_id, last_run, last_success, last_fetched, error_count, last_error
		FROM SyncState ORDER BY kind, owner_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*storage.SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row scanner) (*storage.SyncState, error) {
	var state storage.SyncState
	var kind string
	var lastRun, lastSuccess int64
	if err := row.Scan(&kind, &state.OwnerID, &state.RunID, &lastRun, &lastSuccess,
		&state.LastFetched, &state.ErrorCount, &state.LastError); err != nil {
		return nil, err
	}
	state.Kind = history.Kind(kind)
	state.LastRun = fromUnixMilli(lastRun)
	state.LastSuccess = fromUnixMilli(lastSuccess)
	return &state, nil
}

// ownerColumn maps a table to the column holding its owner id. It also
// guards every place a table name is spliced into SQL.
func ownerColumn(table storage.Table) (string, error) {
	switch table {
	case storage.DeviceHistory:
		return "deviceId", nil
	case storage.SensorHistory:
		return "sensorId", nil
	case storage.GeoFenceEvents:
		return "identifier", nil
	default:
		return "", fmt.Errorf("%w: %q", storage.ErrUnsupportedTable, table)
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
