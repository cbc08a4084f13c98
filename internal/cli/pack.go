package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scaffold"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	packAddRef      string
	packJSON        bool
	packInitID      string
	packDescription string
)

func init() {
	packAddCmd.Flags().StringVar(&packAddRef, "ref", "", "Branch, tag or commit to check out")
	packListCmd.Flags().BoolVar(&packJSON, "json", false, "Output in JSON format")
	packInitCmd.Flags().StringVar(&packInitID, "id", "", "Pack identifier (default: directory name)")
	packInitCmd.Flags().StringVar(&packDescription, "description", "", "Pack description")
	packCmd.AddCommand(packAddCmd, packRemoveCmd, packListCmd, packUpdateCmd, packShowCmd, packInitCmd)
	rootCmd.AddCommand(packCmd)
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage external tech packs",
	Long: `Register, update and remove tech packs cloned from git.

External packs live in ~/.mcs/packs/<identifier> and are listed in
~/.mcs/registry.yaml. Removing a pack does not touch any scope; the next sync
of a scope that carries it removes its artifacts.`,
}

var packAddCmd = &cobra.Command{
	Use:   "add <git-url>",
	Short: "Clone and register a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		lock, err := a.lock()
		if err != nil {
			return err
		}
		defer lock.Release()

		fmt.Fprintf(cmd.OutOrStdout(), "Cloning %s...\n", args[0])
		e, err := a.catalog.Add(cmd.Context(), args[0], packAddRef)
		if err != nil {
			return fmt.Errorf("adding pack: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added pack %s at %s\n", e.Identifier, e.Path)
		return nil
	},
}

var packRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Unregister a pack and delete its checkout",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		lock, err := a.lock()
		if err != nil {
			return err
		}
		defer lock.Release()

		if err := a.catalog.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed pack %s. Run sync in scopes that used it to remove its artifacts.\n", args[0])
		return nil
	},
}

var packUpdateCmd = &cobra.Command{
	Use:   "update [id...]",
	Short: "Pull the latest revision of registered packs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if len(a.catalog.List()) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No external packs registered.")
			return nil
		}
		lock, err := a.lock()
		if err != nil {
			return err
		}
		defer lock.Release()

		if err := a.catalog.Update(cmd.Context(), args...); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Packs updated.")
		return nil
	},
}

var packShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a pack's components and their dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, ok := a.loadRegistry().Get(args[0])
		if !ok {
			return fmt.Errorf("pack %q not found", args[0])
		}
		registry.PrintPack(cmd.OutOrStdout(), p)
		return nil
	},
}

var packListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List available packs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		rows := packRows(a)
		if packJSON {
			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		if err := printPackTable(cmd.OutOrStdout(), rows); err != nil {
			return err
		}
		for _, le := range a.reg.Errors() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", le)
		}
		return nil
	},
}

var packInitCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a starter pack in a new directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
		id := packInitID
		if id == "" {
			id = strings.ToLower(filepath.Base(dir))
		}
		result, err := scaffold.Generate(afero.NewOsFs(), scaffold.NewData(id, packDescription), dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created pack %s in %s:\n", id, result.OutputDir)
		for _, f := range result.Files {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
		}
		return nil
	},
}

// packRow is one line of `pack list`.
type packRow struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Source  string `json:"source"`
	Ref     string `json:"ref,omitempty"`
}

func packRows(a *app) []packRow {
	reg := a.loadRegistry()
	rows := make([]packRow, 0, len(reg.Packs()))
	for _, p := range reg.Packs() {
		row := packRow{ID: p.ID, Version: p.Version, Source: p.Kind.String()}
		if e, ok := a.catalog.Get(p.ID); ok {
			row.Source = e.URL
			row.Ref = e.Ref
		}
		rows = append(rows, row)
	}
	return rows
}

func printPackTable(out io.Writer, rows []packRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tSOURCE\tREF")
	for _, r := range rows {
		ref := r.Ref
		if ref == "" {
			ref = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Version, r.Source, ref)
	}
	return w.Flush()
}
