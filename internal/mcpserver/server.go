// Package mcpserver exposes read-only pack and sync information as MCP tools
// over stdio. Nothing served here changes a scope or takes the process lock.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ScopeResolver maps a tool's path/global arguments to a scope. An empty
// path means the server's working directory.
type ScopeResolver func(path string, global bool) (scope.Scope, scope.Layout, error)

// Service is what the tools read from. Engine is only ever run as a dry run.
type Service struct {
	Registry *registry.Registry
	Engine   *engine.Engine
	Resolve  ScopeResolver
}

// New returns an MCP server with every tool registered.
func New(svc *Service, name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	Register(s, svc)
	return s
}

// Register adds the read-only tools to s.
func Register(s *server.MCPServer, svc *Service) {
	s.AddTool(listPacksTool(), listPacksHandler(svc))
	s.AddTool(syncStatusTool(), syncStatusHandler(svc))
	s.AddTool(planSyncTool(), planSyncHandler(svc))
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- list_packs ---

func listPacksTool() mcp.Tool {
	return mcp.NewTool("list_packs",
		mcp.WithDescription("List the packs available to sync, with version, source and component count."),
	)
}

func listPacksHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		packs := svc.Registry.Packs()
		if len(packs) == 0 {
			return mcp.NewToolResultText("No packs available."), nil
		}
		var sb strings.Builder
		for _, p := range packs {
			fmt.Fprintf(&sb, "%s  %s  %s  %d component(s)", p.ID, p.Version, p.Kind, len(p.Components))
			if p.Description != "" {
				fmt.Fprintf(&sb, "  %s", p.Description)
			}
			sb.WriteByte('\n')
		}
		for _, le := range svc.Registry.Errors() {
			fmt.Fprintf(&sb, "error: %v\n", le)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- sync_status ---

func scopeArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("path",
			mcp.Description("Project directory. Omit for the server's working directory."),
		),
		mcp.WithBoolean("global",
			mcp.Description("Use the global scope instead of a project."),
		),
	}
}

func syncStatusTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Show the packs configured in a scope and how many artifacts each holds. Returns JSON."),
	}, scopeArgs()...)
	return mcp.NewTool("sync_status", opts...)
}

func syncStatusHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sc, layout, err := svc.Resolve(req.GetString("path", ""), req.GetBool("global", false))
		if err != nil {
			return toolError(err)
		}
		st, err := svc.Engine.Status(layout)
		if err != nil {
			return toolError(err)
		}
		data, err := json.MarshalIndent(engine.Summarize(sc.String(), st), "", "  ")
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// --- plan_sync ---

func planSyncTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute what a sync would change without changing anything. Omit packs to re-plan the configured packs."),
		mcp.WithArray("packs",
			mcp.Description("Pack ids the scope should end up with."),
			mcp.WithStringItems(),
		),
	}, scopeArgs()...)
	return mcp.NewTool("plan_sync", opts...)
}

func planSyncHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sc, layout, err := svc.Resolve(req.GetString("path", ""), req.GetBool("global", false))
		if err != nil {
			return toolError(err)
		}
		packs := req.GetStringSlice("packs", nil)
		if len(packs) == 0 {
			st, err := svc.Engine.Status(layout)
			if err != nil {
				return toolError(err)
			}
			packs = st.ConfiguredPacks
		}

		rep, err := svc.Engine.Sync(ctx, engine.Request{Scope: sc, Layout: layout, Packs: packs, DryRun: true})
		if err != nil {
			return toolError(err)
		}
		var buf bytes.Buffer
		rep.Print(&buf)
		return mcp.NewToolResultText(buf.String()), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
