package cli

import (
	"strconv"

	"github.com/jwulff/livehistory/internal/output"
	"github.com/jwulff/livehistory/internal/storage"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the outcome of the latest sync of every owner",
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

			states, err := a.service.SyncStates(cmd.Context())
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return output.WriteStructured(cmd.OutOrStdout(), format, nonNil(states))
			}

			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, stateRow(s))
			}
			return output.WriteTable(cmd.OutOrStdout(),
				[]string{"KIND", "OWNER", "LAST RUN", "LAST SUCCESS", "FETCHED", "ERRORS", "LAST ERROR"}, rows)
		},
	}
}

func stateRow(s *storage.SyncState) []string {
	return []string{
		string(s.Kind),
		strconv.FormatInt(s.OwnerID, 10),
		output.Stamp(s.LastRun),
		output.Stamp(s.LastSuccess),
		strconv.Itoa(s.LastFetched),
		strconv.Itoa(s.ErrorCount),
		output.OrNone(s.LastError),
	}
}
