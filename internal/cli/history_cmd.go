package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jwulff/livehistory/internal/history"
	"github.com/jwulff/livehistory/internal/output"
	"github.com/jwulff/livehistory/internal/query"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		q  query.Query
		tz string
	)

	cmd := &cobra.Command{
		Use:   "history <device|sensor> <id>",
		Short: "Show the cached history of an owner grouped by day",
		Long: "Shows the cached rows newest first, grouped by calendar day. " +
			"For sensors, --type selects one measurement kind between --from and --to.",
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
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid time zone %q: %w", tz, err)
			}
			if kind == history.KindDevice && q.Type != "" {
				return fmt.Errorf("--type only applies to sensor history")
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			q.OwnerID = id
			h, err := a.service.GetHistory(cmd.Context(), kind, q)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if kind == history.KindDevice {
				return writeDeviceDays(w, format, history.GroupByDay(h.Device, loc), loc)
			}
			return writeSensorDays(w, format, history.GroupByDay(h.Sensor, loc), loc)
		},
	}

	cmd.Flags().StringVar(&q.Type, "type", "", "Sensor measurement type, e.g. temp")
	cmd.Flags().StringVar(&q.Scale, "scale", "0", "Sensor measurement scale, used with --type")
	cmd.Flags().Int64Var(&q.From, "from", 0, "Earliest timestamp, inclusive, used with --type")
	cmd.Flags().Int64Var(&q.To, "to", 0, "Latest timestamp, inclusive, used with --type (0 means no bound)")
	cmd.Flags().StringVar(&tz, "tz", "Local", "Time zone used to group rows by day")
	return cmd
}

func writeDeviceDays(w io.Writer, format output.Format, days []history.DayBucket[history.DeviceEntry], loc *time.Location) error {
	if format != output.FormatTable {
		return output.WriteStructured(w, format, nonNil(days))
	}

	var rows [][]string
	for _, day := range days {
		for i, e := range day.Entries {
			rows = append(rows, []string{
				dayLabel(day.Day, i),
				output.Clock(e.TS, loc),
				strconv.Itoa(e.State),
				output.OrNone(e.StateValue),
				output.OrNone(e.Origin),
				strconv.Itoa(e.SuccessStatus),
			})
		}
	}
	return output.WriteTable(w, []string{"DAY", "TIME", "STATE", "VALUE", "ORIGIN", "STATUS"}, rows)
}

func writeSensorDays(w io.Writer, format output.Format, days []history.DayBucket[history.SensorEntry], loc *time.Location) error {
	if format != output.FormatTable {
		return output.WriteStructured(w, format, nonNil(days))
	}

	var rows [][]string
	for _, day := range days {
		for i, e := range day.Entries {
			rows = append(rows, []string{
				dayLabel(day.Day, i),
				output.Clock(e.TS, loc),
				e.Type,
				output.Float(e.Value),
				e.Scale,
			})
		}
	}
	return output.WriteTable(w, []string{"DAY", "TIME", "TYPE", "VALUE", "SCALE"}, rows)
}

// dayLabel prints the day only on the first row of its bucket.
func dayLabel(day string, i int) string {
	if i == 0 {
		return day
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func newTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types <sensor-id>",
		Short: "List the measurement types cached for a sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			format, err := opts.format()
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			types, err := a.service.GetSensorTypes(cmd.Context(), id)
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return output.WriteStructured(cmd.OutOrStdout(), format, nonNil(types))
			}

			rows := make([][]string, 0, len(types))
			for _, t := range types {
				rows = append(rows, []string{t.Type, t.Scale})
			}
			return output.WriteTable(cmd.OutOrStdout(), []string{"TYPE", "SCALE"}, rows)
		},
	}
}

// latestResult is the structured form of the latest command.
type latestResult struct {
	Kind    history.Kind `json:"kind" yaml:"kind"`
	OwnerID int64        `json:"ownerId" yaml:"ownerId"`
	Latest  *int64       `json:"latest" yaml:"latest"`
}

func newLatestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <device|sensor> <id>",
		Short: "Print the newest cached timestamp of an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseOwner(args)
			if err != nil {
				return err
			}
			format, err := opts.format()
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ts, ok, err := a.service.GetLatestTimestamp(cmd.Context(), kind, id)
			if err != nil {
				return err
			}

			res := latestResult{Kind: kind, OwnerID: id}
			if ok {
				res.Latest = &ts
			}
			if format != output.FormatTable {
				return output.WriteStructured(cmd.OutOrStdout(), format, res)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "<none>")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ts)
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <device|sensor> <id>",
		Short: "Delete the cached history of one owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseOwner(args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.ClearHistory(cmd.Context(), kind, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s %d\n", kind, id)
			return nil
		},
	}
}
