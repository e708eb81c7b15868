package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
)

// schema contains the database schema DDL. Every statement is idempotent.
const schema = `
-- Device history
CREATE TABLE IF NOT EXISTS DeviceHistory1_1 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    deviceId INTEGER NOT NULL,
    state INTEGER NOT NULL,
    stateValue TEXT,
    origin TEXT NOT NULL DEFAULT '',
    successStatus INTEGER,
    title TEXT,
    description TEXT,
    color TEXT,
    icon TEXT,
    class TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_device_history_key ON DeviceHistory1_1(ts, deviceId, state, origin);
CREATE INDEX IF NOT EXISTS idx_device_history_device ON DeviceHistory1_1(deviceId);

-- Sensor history
CREATE TABLE IF NOT EXISTS SensorHistory (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    sensorId INTEGER NOT NULL,
    type TEXT NOT NULL,
    value REAL,
    scale TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sensor_history_key ON SensorHistory(ts, sensorId, type, scale);
CREATE INDEX IF NOT EXISTS idx_sensor_history_sensor ON SensorHistory(sensorId);

-- Geofence events
CREATE TABLE IF NOT EXISTS GeoFenceEvents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier TEXT NOT NULL,
    "action" TEXT,
    title TEXT,
    timestamp TEXT NOT NULL DEFAULT '',
    inAppTime TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_geofence_events_key ON GeoFenceEvents(identifier, timestamp, inAppTime);
CREATE INDEX IF NOT EXISTS idx_geofence_events_identifier ON GeoFenceEvents(identifier);

-- Sync bookkeeping
CREATE TABLE IF NOT EXISTS SyncState (
    kind TEXT NOT NULL,
    owner_id INTEGER NOT NULL,
    run_id TEXT NOT NULL DEFAULT '',
    last_run INTEGER NOT NULL DEFAULT 0,
    last_success INTEGER NOT NULL DEFAULT 0,
    last_fetched INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (kind, owner_id)
);
`

// legacyTables are superseded tables that are dropped on open.
var legacyTables = []string{"DeviceHistory"}

func migrate(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Best effort: a legacy table that cannot be dropped does not block open.
	for _, name := range legacyTables {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+name+`"`); err != nil {
			log.Warn("failed to drop legacy table", "table", name, "error", err)
		}
	}
	return nil
}
