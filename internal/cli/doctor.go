package cli

import (
	"errors"
	"fmt"

	"github.com/bguidolim/mcs/internal/doctor"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/spf13/cobra"
)

var (
	doctorGlobal bool
	doctorFix    bool
)

func init() {
	doctorCmd.Flags().BoolVarP(&doctorGlobal, "global", "g", false, "Check the global scope")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Prune stale reference index entries")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor [dir]",
	Short: "Check a scope for drift and broken bookkeeping",
	Long: `Run read-only health checks on a scope: stored state, the instructions
document, owned settings keys, copied files, the reference index and pack
checkouts. With --fix, stale reference index entries are pruned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		sc, layout, err := resolveScope(a.fs, dir, doctorGlobal)
		if err != nil {
			return err
		}

		d := &doctor.Doctor{
			Fs:       a.fs,
			Registry: a.loadRegistry(),
			Index:    a.index,
			Packs:    a.catalog.List(),

			LookupTool: integrations.Available,
		}
		out := cmd.OutOrStdout()
		if doctorFix {
			removed, err := d.Fix(a.lockPath)
			if err != nil {
				return err
			}
			for _, p := range removed {
				fmt.Fprintf(out, "Pruned stale index entry %s\n", p)
			}
		}

		rep := d.Check(sc, layout)
		rep.Print(out)
		if !rep.Healthy() {
			return errors.New("doctor found failures")
		}
		return nil
	},
}
