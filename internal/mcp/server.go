// Package mcp exposes pulsekit operations as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/pulsekit/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
// Names follow "area_action".
var toolRegistry = map[string]toolEntry{
	"project_init": {
		def:     initToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInit },
	},
	"project_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"pulses_extract": {
		def:     extractToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExtract },
	},
	"pulses_load": {
		def:     loadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoad },
	},
	"pulses_approve": {
		def:     approveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApprove },
	},
	"pulses_discover": {
		def:     discoverToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDiscover },
	},
	"pulses_save_approved": {
		def:     saveApprovedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveApproved },
	},
	"charge_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"charge_batch": {
		def:     batchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBatch },
	},
	"runs_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the pulsekit tools registered.
// Tools listed in cfg.DisabledTools are left out. root is the project root
// used by project_init; database may be nil, in which case runs are not
// recorded and runs_history fails.
func NewServer(database *sql.DB, cfg *config.Config, root, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"pulsekit",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(database, cfg, root)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the MCP tools over stdio until stdin closes.
func Run(database *sql.DB, cfg *config.Config, root, version string) error {
	return server.ServeStdio(NewServer(database, cfg, root, version))
}
