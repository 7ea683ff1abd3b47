package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/matsift/internal/elemset"
)

var stringItems = map[string]any{"type": "string"}

var elementsGroupToolDef = mcp.NewTool("elements_group",
	mcp.WithDescription("Resolve named element groups to their symbols, merged in first-seen order. Groups: "+
		strings.Join(elemset.GroupNames(), ", ")+"."),
	mcp.WithArray("groups",
		mcp.Required(),
		mcp.Description("Group names to merge"),
		mcp.Items(stringItems),
	),
)

var elementsAllToolDef = mcp.NewTool("elements_all",
	mcp.WithDescription("List every element symbol in atomic-number order, optionally excluding atomic numbers."),
	mcp.WithArray("exclude_atomic_numbers",
		mcp.Description("Atomic numbers (1-118) to leave out"),
		mcp.Items(map[string]any{"type": "integer"}),
	),
)

var cacheListToolDef = mcp.NewTool("cache_list",
	mcp.WithDescription("List cached searches."),
)

var cacheFetchToolDef = mcp.NewTool("cache_fetch",
	mcp.WithDescription("Return the cached result records of a search."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Search name"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Return at most this many records (0 = all)"),
	),
)

var searchRunToolDef = mcp.NewTool("search_run",
	mcp.WithDescription("Run a search: reuse the cached results for the name or query the Materials Project, "+
		"then run classification and analysis. Requires a saved API key on a cache miss."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Search name; also the cache key"),
	),
	mcp.WithArray("elements",
		mcp.Description("Symbols a material must contain at least one of"),
		mcp.Items(stringItems),
	),
	mcp.WithArray("exclude",
		mcp.Description("Symbols a material must not contain"),
		mcp.Items(stringItems),
	),
	mcp.WithArray("exclude_groups",
		mcp.Description("Element groups to exclude"),
		mcp.Items(stringItems),
	),
	mcp.WithNumber("max_sites",
		mcp.Description("Maximum sites per structure (default 30)"),
	),
	mcp.WithNumber("num_elements",
		mcp.Description("Exact number of distinct elements (default 3)"),
	),
	mcp.WithNumber("task_count",
		mcp.Description("Classification task-count hint"),
	),
	mcp.WithArray("filter_order",
		mcp.Description("Analysis filter order"),
		mcp.Items(stringItems),
	),
	mcp.WithBoolean("include_records",
		mcp.Description("Include the result records in the response"),
	),
)

var historyListToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List recorded search runs, newest first."),
	mcp.WithString("search_name",
		mcp.Description("Only runs of this search"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Page offset"),
	),
)
