package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jwulff/livehistory/internal/output"
	"github.com/jwulff/livehistory/internal/syncer"
	"github.com/spf13/cobra"
)

// errUnavailable is returned after printing a result whose sync failed.
var errUnavailable = errors.New("history source unavailable, showing cached data")

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <device|sensor> <id>",
		Short: "Fetch the records newer than the cached ones and merge them",
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

			res, err := a.coord.Refresh(cmd.Context(), kind, id)
			if err != nil {
				return err
			}
			if err := writeResult(cmd.OutOrStdout(), format, res); err != nil {
				return err
			}
			if res.Status == syncer.StatusUnavailable {
				return fmt.Errorf("%w: %s", errUnavailable, res.Cause)
			}
			return nil
		},
	}
}

func writeResult(w io.Writer, format output.Format, res syncer.Result) error {
	if format != output.FormatTable {
		return output.WriteStructured(w, format, res)
	}

	since, latest := "<none>", "<none>"
	if res.Since != nil {
		since = strconv.FormatInt(*res.Since, 10)
	}
	if res.Latest != nil {
		latest = strconv.FormatInt(*res.Latest, 10)
	}

	rows := [][]string{
		{"kind", string(res.Kind)},
		{"owner", strconv.FormatInt(res.OwnerID, 10)},
		{"status", string(res.Status)},
		{"since", since},
		{"fetched", strconv.Itoa(res.Fetched)},
		{"stored", strconv.Itoa(res.Stored)},
		{"cached", strconv.Itoa(res.History.Len())},
		{"latest", latest},
		{"run", output.OrNone(res.RunID)},
		{"cause", output.OrNone(res.Cause)},
	}
	return output.WriteTable(w, []string{"FIELD", "VALUE"}, rows)
}

// resultLine is the one-line form of a result used while watching.
func resultLine(res syncer.Result) string {
	line := fmt.Sprintf("%s %d: %s cached=%d", res.Kind, res.OwnerID, res.Status, res.History.Len())
	if res.Status != syncer.StatusCached {
		line += fmt.Sprintf(" fetched=%d stored=%d", res.Fetched, res.Stored)
	}
	if res.Latest != nil {
		line += fmt.Sprintf(" latest=%d", *res.Latest)
	}
	if res.Cause != "" {
		line += fmt.Sprintf(" cause=%q", res.Cause)
	}
	return line
}
