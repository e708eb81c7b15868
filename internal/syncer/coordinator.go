// Package syncer keeps the history cache fresh by pulling only the records
// newer than what is already cached and merging them into the store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/query"
	"github.com/jwulff/livehistory/internal/storage"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the remote "history since" contract. A nil since asks for the
// whole history, otherwise only records with ts >= *since are expected.
type Fetcher interface {
	DeviceHistory(ctx context.Context, deviceID int64, since *int64) ([]history.DeviceRecord, error)
	SensorHistory(ctx context.Context, sensorID int64, since *int64) ([]history.SensorRecord, error)
}

// Status describes how a Result was produced.
type Status string

const (
	// StatusCached is a cache read without any remote fetch.
	StatusCached Status = "cached"

	// StatusUpdated means new records were fetched and merged.
	StatusUpdated Status = "updated"

	// StatusUpToDate means the remote had nothing newer.
	StatusUpToDate Status = "up-to-date"

	// StatusUnavailable means the fetch or the merge failed; the cache is unchanged
	// for the failed part and the cached view is served.
	StatusUnavailable Status = "unavailable"
)

// Result is the outcome of a refresh, always carrying the cached view of the owner.
type Result struct {
	RunID   string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	Kind    history.Kind  `json:"kind" yaml:"kind"`
	OwnerID int64         `json:"ownerId" yaml:"ownerId"`
	Status  Status        `json:"status" yaml:"status"`
	Since   *int64        `json:"since,omitempty" yaml:"since,omitempty"`
	Fetched int           `json:"fetched" yaml:"fetched"` // rows, after flattening sensor records
	Stored  int           `json:"stored" yaml:"stored"`
	Latest  *int64        `json:"latest,omitempty" yaml:"latest,omitempty"`
	Cause   string        `json:"cause,omitempty" yaml:"cause,omitempty"`
	History query.History `json:"history" yaml:"history"`
}

// Coordinator runs delta syncs. At most one sync per owner is in flight;
// concurrent callers for the same owner share its result.
type Coordinator struct {
	service *query.Service
	remote  Fetcher
	config  Config
	log     *slog.Logger
	flights singleflight.Group
}

// New creates a Coordinator merging records from remote through service.
func New(service *query.Service, remote Fetcher, c Config, log *slog.Logger) (*Coordinator, error) {
	if service == nil {
		return nil, fmt.Errorf("syncer: query service is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("syncer: fetcher is required")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("syncer: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{service: service, remote: remote, config: c, log: log}, nil
}

// Cached returns the cached view of an owner without fetching.
func (c *Coordinator) Cached(ctx context.Context, kind history.Kind, ownerID int64) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("cached: %w: %q", history.ErrUnknownKind, kind)
	}
	res := Result{Kind: kind, OwnerID: ownerID, Status: StatusCached}
	if err := c.readView(ctx, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Refresh fetches the records newer than the cached ones, merges them and
// returns the updated view. Remote failures are logged and reported through
// Result.Status; only a failure to read the cache is returned as an error.
//
// Returning early because ctx is done does not stop a sync already in
// flight; other callers for the same owner still receive its result.
func (c *Coordinator) Refresh(ctx context.Context, kind history.Kind, ownerID int64) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("refresh: %w: %q", history.ErrUnknownKind, kind)
	}

	key := fmt.Sprintf("%s:%d", kind, ownerID)
	ch := c.flights.DoChan(key, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), kind, ownerID)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		if r.Shared {
			c.log.Debug("joined in-flight sync", "kind", kind, "owner", ownerID)
		}
		return r.Val.(Result), nil
	}
}

func (c *Coordinator) refresh(ctx context.Context, kind history.Kind, ownerID int64) (Result, error) {
	res := Result{RunID: uuid.NewString(), Kind: kind, OwnerID: ownerID}
	log := c.log.With("run", res.RunID, "kind", kind, "owner", ownerID)

	latest, ok, err := c.service.GetLatestTimestamp(ctx, kind, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read latest timestamp: %w", err)
	}
	if ok {
		since := latest + 1
		res.Since = &since
	}

	state := c.loadState(ctx, log, kind, ownerID)

	payload, fetched, err := c.fetch(ctx, kind, ownerID, res.Since)
	res.Fetched = fetched
	switch {
	case err != nil:
		log.Warn("history fetch failed, serving cached data", "error", err)
		res.Status = StatusUnavailable
		res.Cause = err.Error()
		state.RecordError(res.RunID, err.Error())

	case fetched == 0:
		log.Debug("history up to date")
		res.Status = StatusUpToDate
		state.RecordSuccess(res.RunID, 0)

	default:
		stored, err := c.service.StoreHistory(ctx, kind, payload)
		res.Stored = stored
		if err != nil {
			log.Error("failed to merge fetched history", "error", err, "stored", stored)
			res.Status = StatusUnavailable
			res.Cause = err.Error()
			state.RecordError(res.RunID, err.Error())
			break
		}
		log.Info("history merged", "fetched", fetched, "stored", stored)
		res.Status = StatusUpdated
		state.RecordSuccess(res.RunID, fetched)
	}

	if err := c.service.SaveSyncState(ctx, state); err != nil {
		log.Warn("failed to save sync state", "error", err)
	}

	if err := c.readView(ctx, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (c *Coordinator) fetch(ctx context.Context, kind history.Kind, ownerID int64, since *int64) (query.Payload, int, error) {
	payload := query.Payload{OwnerID: ownerID}
	switch kind {
	case history.KindDevice:
		records, err := c.remote.DeviceHistory(ctx, ownerID, since)
		if err != nil {
			return payload, 0, err
		}
		payload.Device = records
		return payload, len(records), nil

	case history.KindSensor:
		records, err := c.remote.SensorHistory(ctx, ownerID, since)
		if err != nil {
			return payload, 0, err
		}
		payload.Sensor = records
		// A record holds one row per reported value and may hold none.
		n := 0
		for _, r := range records {
			n += len(r.Data)
		}
		return payload, n, nil

	default:
		return payload, 0, fmt.Errorf("%w: %q", history.ErrUnknownKind, kind)
	}
}

// readView fills the cached rows and latest timestamp of res.
func (c *Coordinator) readView(ctx context.Context, res *Result) error {
	view, err := c.service.GetHistory(ctx, res.Kind, query.Query{OwnerID: res.OwnerID})
	if err != nil {
		return fmt.Errorf("failed to read cached history: %w", err)
	}
	res.History = view

	// Rows are newest first.
	var latest int64
	switch {
	case len(view.Device) > 0:
		latest = view.Device[0].TS
	case len(view.Sensor) > 0:
		latest = view.Sensor[0].TS
	default:
		return nil
	}
	res.Latest = &latest
	return nil
}

func (c *Coordinator) loadState(ctx context.Context, log *slog.Logger, kind history.Kind, ownerID int64) *storage.SyncState {
	state, err := c.service.SyncState(ctx, kind, ownerID)
	if err == nil {
		return state
	}
	if !storage.IsNotFound(err) {
		log.Warn("failed to load sync state", "error", err)
	}
	return storage.NewSyncState(kind, ownerID)
}
