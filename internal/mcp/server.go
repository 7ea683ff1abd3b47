package mcp

import (
	"context"
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/matsift/internal/cache"
	"github.com/hpungsan/matsift/internal/config"
	"github.com/hpungsan/matsift/internal/pipeline"
)

// Searcher runs the search pipeline.
type Searcher interface {
	Run(ctx context.Context, in pipeline.RunInput) (*pipeline.RunOutput, error)
}

// Deps are the services the tools operate on. Search may be nil, in which
// case search_run reports INVALID_REQUEST.
type Deps struct {
	Cache  cache.Store
	DB     *sql.DB
	Search Searcher
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"elements_group": {
		def:     elementsGroupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementsGroup },
	},
	"elements_all": {
		def:     elementsAllToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementsAll },
	},
	"cache_list": {
		def:     cacheListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCacheList },
	},
	"cache_fetch": {
		def:     cacheFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCacheFetch },
	},
	"search_run": {
		def:     searchRunToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchRun },
	},
	"history_list": {
		def:     historyListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryList },
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

// NewServer creates a new MCP server with matsift tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"matsift",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, cfg *config.Config, version string) error {
	s := NewServer(deps, cfg, version)
	return server.ServeStdio(s)
}
