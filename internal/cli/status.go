package cli

import (
	"encoding/json"
	"fmt"

	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	statusGlobal bool
	statusJSON   bool
)

func init() {
	statusCmd.Flags().BoolVarP(&statusGlobal, "global", "g", false, "Show the global scope")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Show the packs configured in a scope",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		fsys := afero.NewOsFs()
		sc, layout, err := resolveScope(fsys, dir, statusGlobal)
		if err != nil {
			return err
		}
		st, err := state.NewStore(fsys, layout.StatePath).Load()
		if err != nil {
			return err
		}

		summary := engine.Summarize(sc.String(), st)
		if statusJSON {
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}
		summary.Print(cmd.OutOrStdout())
		return nil
	},
}

