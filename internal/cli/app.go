package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jwulff/livehistory/internal/config"
	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/liveapi"
	"github.com/jwulff/livehistory/internal/query"
	"github.com/jwulff/livehistory/internal/storage/sqlite"
	"github.com/jwulff/livehistory/internal/syncer"
	"github.com/spf13/cobra"
)

// app is the wired stack a command runs against.
type app struct {
	config  config.Config
	log     *slog.Logger
	service *query.Service
	coord   *syncer.Coordinator
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if opts.dbPath != "" {
		c.Store.Path = opts.dbPath
		if err := c.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("failed to validate config: %w", err)
		}
	}
	return c, nil
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	c, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: c.LogLevel}))

	store, err := sqlite.New(c.Store, log)
	if err != nil {
		return nil, err
	}
	service, err := query.New(store, c.Query, log)
	if err != nil {
		return nil, err
	}
	coord, err := syncer.New(service, liveapi.NewClient(c.API), c.Sync, log)
	if err != nil {
		return nil, err
	}
	return &app{config: c, log: log, service: service, coord: coord}, nil
}

func (a *app) Close() error {
	if err := a.service.CloseDatabase(); err != nil {
		a.log.Warn("failed to close database", "error", err)
		return err
	}
	return nil
}

// parseOwner reads the <kind> <id> arguments.
func parseOwner(args []string) (history.Kind, int64, error) {
	kind, err := history.ParseKind(args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(args[1])
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", v)
	}
	return id, nil
}
