package cli

import (
	"github.com/bguidolim/mcs/internal/branding"
	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/mcpserver"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveMCPCmd)
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve read-only pack and sync tools over MCP (stdio)",
	Long: `Start an MCP server on stdin/stdout exposing list_packs, sync_status and
plan_sync. The tools never change a scope.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		reg := a.loadRegistry()
		svc := &mcpserver.Service{
			Registry: reg,
			Engine:   &engine.Engine{Registry: reg, Fs: a.fs, Index: a.index, Log: logger},
			Resolve: func(path string, global bool) (scope.Scope, scope.Layout, error) {
				return resolveScope(a.fs, path, global)
			},
		}
		logger.Info("serving MCP over stdio", "packs", len(reg.IDs()))
		return mcpserver.Serve(mcpserver.New(svc, branding.CLIName(), buildVersion))
	},
}
