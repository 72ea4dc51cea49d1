package mcp

import (
	"context"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/config"
	"github.com/hpungsan/shelf/internal/library"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"library_sync": {
		def:     librarySyncToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSync },
	},
	"library_status": {
		def:     libraryStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"library_count": {
		def:     libraryCountToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGameCount },
	},
	"config_get": {
		def:     configGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigGet },
	},
	"config_set": {
		def:     configSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigSet },
	},
	"managed_list": {
		def:     managedListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManagedList },
	},
	"managed_count": {
		def:     managedCountToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManagedCount },
	},
	"managed_add": {
		def:     managedAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManagedAdd },
	},
	"managed_remove": {
		def:     managedRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleManagedRemove },
	},
	"unmanaged_list": {
		def:     unmanagedListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUnmanagedList },
	},
	"removed_list": {
		def:     removedListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemovedList },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
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

// NewServer creates a new MCP server with Shelf tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(eng *library.Engine, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"shelf",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(eng, logger)

	disabled := make(map[string]bool)
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

// Run serves MCP over stdio until ctx ends or stdin closes.
func Run(ctx context.Context, eng *library.Engine, cfg *config.Config, logger *zap.Logger, version string) error {
	s := NewServer(eng, cfg, logger, version)
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(zap.NewStdLog(logger.Named("mcp")))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
