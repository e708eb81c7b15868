// Package cli implements the livehistory command tree.
package cli

import (
	"github.com/jwulff/livehistory/internal/output"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	output string
	dbPath string
}

func (o *rootOptions) format() (output.Format, error) {
	return output.ParseFormat(o.output)
}

// NewRootCmd builds the livehistory root command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "livehistory",
		Short:        "Local cache of device, sensor and geofence history",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Database file, overrides HISTORY_DB_PATH")

	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newTypesCmd(opts))
	cmd.AddCommand(newLatestCmd(opts))
	cmd.AddCommand(newClearCmd(opts))
	cmd.AddCommand(newGeoFenceCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}
