package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwulff/livehistory/internal/output"
	"github.com/jwulff/livehistory/internal/syncer"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <device|sensor> <id>",
		Short: "Keep an owner's history fresh until interrupted",
		Long: "Prints the cached view, refreshes it, and then re-activates the view every interval. " +
			"Activations closer together than SYNC_RETRY_DELAY collapse into one refresh.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseOwner(args)
			if err != nil {
				return err
			}
			format, err := opts.format()
			if err != nil {
				return err
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be greater than 0")
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			surface := a.coord.NewSurface(kind, id, func(res syncer.Result, err error) {
				switch {
				case err != nil:
					a.log.Error("refresh failed", "kind", kind, "owner", id, "error", err)
				case format == output.FormatTable:
					fmt.Fprintln(out, resultLine(res))
				default:
					if err := output.WriteStructured(out, format, res); err != nil {
						a.log.Error("failed to write result", "error", err)
					}
				}
			})
			defer surface.Close()

			surface.Mount()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					a.log.Debug("watch stopped", "kind", kind, "owner", id)
					return nil
				case <-ticker.C:
					surface.Activate()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often the view is re-activated")
	return cmd
}
