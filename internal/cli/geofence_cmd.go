package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/output"
	"github.com/spf13/cobra"
)

func newGeoFenceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geofence",
		Short: "Log and inspect geofence crossings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newGeoFenceLogCmd(opts))
	cmd.AddCommand(newGeoFenceListCmd(opts))
	cmd.AddCommand(newGeoFenceClearCmd(opts))
	return cmd
}

func newGeoFenceLogCmd(opts *rootOptions) *cobra.Command {
	var event history.GeoFenceEvent

	cmd := &cobra.Command{
		Use:   "log <identifier> <enter|exit>",
		Short: "Record one geofence crossing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event.Identifier = args[0]
			event.Action = args[1]
			if event.InAppTime == "" {
				event.InAppTime = strconv.FormatInt(time.Now().UnixMilli(), 10)
			}
			if err := event.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.StoreGeoFenceEvent(cmd.Context(), event); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged %s %s\n", event.Action, event.Identifier)
			return nil
		},
	}

	cmd.Flags().StringVar(&event.Title, "title", "", "Display title of the geofence")
	cmd.Flags().StringVar(&event.Timestamp, "timestamp", "", "Time reported by the location service")
	cmd.Flags().StringVar(&event.InAppTime, "in-app-time", "", "Time the crossing was handled, unix milliseconds (default now)")
	return cmd
}

func newGeoFenceListCmd(opts *rootOptions) *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged geofence crossings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var events []history.GeoFenceEvent
			if identifier != "" {
				events, err = a.service.GetGeoFenceEventsFor(cmd.Context(), identifier)
			} else {
				events, err = a.service.GetGeoFenceEvents(cmd.Context())
			}
			if err != nil {
				return err
			}

			if format != output.FormatTable {
				return output.WriteStructured(cmd.OutOrStdout(), format, nonNil(events))
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					e.Identifier,
					e.Action,
					output.OrNone(e.Title),
					output.OrNone(e.Timestamp),
					output.OrNone(e.InAppTime),
				})
			}
			return output.WriteTable(cmd.OutOrStdout(), []string{"IDENTIFIER", "ACTION", "TITLE", "TIMESTAMP", "IN-APP TIME"}, rows)
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Only list this geofence")
	return cmd
}

func newGeoFenceClearCmd(opts *rootOptions) *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete logged geofence crossings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if identifier != "" {
				if err := a.service.ClearGeoFence(cmd.Context(), identifier); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared geofence %s\n", identifier)
				return nil
			}
			if err := a.service.ClearGeoFenceEvents(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared geofence log")
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Only clear this geofence")
	return cmd
}
