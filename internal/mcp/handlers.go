package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/matsift/internal/config"
	"github.com/hpungsan/matsift/internal/elemset"
	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/history"
	"github.com/hpungsan/matsift/internal/periodic"
	"github.com/hpungsan/matsift/internal/pipeline"
	"github.com/hpungsan/matsift/internal/query"
	"github.com/hpungsan/matsift/internal/record"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
	cfg  *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, cfg *config.Config) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{deps: deps, cfg: cfg}
}

// Request types for each tool

// ElementsGroupRequest represents the arguments for elements_group.
type ElementsGroupRequest struct {
	Groups []string `json:"groups"`
}

// ElementsAllRequest represents the arguments for elements_all.
type ElementsAllRequest struct {
	ExcludeAtomicNumbers []int `json:"exclude_atomic_numbers,omitempty"`
}

// CacheFetchRequest represents the arguments for cache_fetch.
type CacheFetchRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit,omitempty"`
}

// SearchRunRequest represents the arguments for search_run.
type SearchRunRequest struct {
	Name           string   `json:"name"`
	Elements       []string `json:"elements,omitempty"`
	Exclude        []string `json:"exclude,omitempty"`
	ExcludeGroups  []string `json:"exclude_groups,omitempty"`
	MaxSites       int      `json:"max_sites,omitempty"`
	NumElements    int      `json:"num_elements,omitempty"`
	TaskCount      int      `json:"task_count,omitempty"`
	FilterOrder    []string `json:"filter_order,omitempty"`
	IncludeRecords bool     `json:"include_records,omitempty"`
}

// HistoryListRequest represents the arguments for history_list.
type HistoryListRequest struct {
	SearchName string `json:"search_name,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Response types

// ElementsOutput lists element symbols, and the same elements with their
// atomic numbers.
type ElementsOutput struct {
	Elements []string           `json:"elements"`
	Table    []periodic.Element `json:"table"`
	Count    int                `json:"count"`
}

// CacheListOutput lists cached searches.
type CacheListOutput struct {
	Items any `json:"items"`
}

// CacheFetchOutput carries the records of one cached search.
type CacheFetchOutput struct {
	Name      string           `json:"name"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
	Records   record.ResultSet `json:"records"`
}

// SearchRunOutput summarizes a pipeline run.
type SearchRunOutput struct {
	RunID       string           `json:"run_id,omitempty"`
	States      []pipeline.State `json:"states"`
	CacheHit    bool             `json:"cache_hit"`
	RecordCount int              `json:"record_count"`
	Records     record.ResultSet `json:"records,omitempty"`
}

// Handler implementations

// HandleElementsGroup handles the elements_group tool call.
func (h *Handlers) HandleElementsGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementsGroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Groups) == 0 {
		return errorResult(errors.NewInvalidRequest("at least one group is required")), nil
	}

	set, err := elemset.Groups(input.Groups...)
	if err != nil {
		return errorResult(err), nil
	}
	return elementsResult(set.Symbols())
}

// HandleElementsAll handles the elements_all tool call.
func (h *Handlers) HandleElementsAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementsAllRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	symbols, err := periodic.AllElements(input.ExcludeAtomicNumbers...)
	if err != nil {
		return errorResult(err), nil
	}
	return elementsResult(symbols)
}

func elementsResult(symbols []string) (*mcp.CallToolResult, error) {
	table, err := periodic.ElementsOf(symbols)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ElementsOutput{Elements: symbols, Table: table, Count: len(symbols)})
}

// HandleCacheList handles the cache_list tool call.
func (h *Handlers) HandleCacheList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.deps.Cache.List()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CacheListOutput{Items: entries})
}

// HandleCacheFetch handles the cache_fetch tool call.
func (h *Handlers) HandleCacheFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CacheFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Name == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}
	if input.Limit < 0 {
		return errorResult(errors.NewInvalidRequest("limit must not be negative")), nil
	}

	rs, err := h.deps.Cache.Load(input.Name)
	if err != nil {
		return errorResult(err), nil
	}

	out := CacheFetchOutput{Name: input.Name, Count: len(rs), Records: rs}
	if input.Limit > 0 && len(rs) > input.Limit {
		out.Records = rs[:input.Limit]
		out.Truncated = true
	}
	if out.Records == nil {
		out.Records = record.ResultSet{}
	}
	return successResult(out)
}

// HandleSearchRun handles the search_run tool call.
func (h *Handlers) HandleSearchRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.deps.Search == nil {
		return errorResult(errors.NewInvalidRequest("search is not available on this server")), nil
	}

	input, err := decode[SearchRunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Name == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}
	if input.MaxSites < 0 || input.NumElements < 0 || input.TaskCount < 0 {
		return errorResult(errors.NewInvalidRequest("max_sites, num_elements and task_count must not be negative")), nil
	}

	include, err := elemset.FromSymbols(input.Elements)
	if err != nil {
		return errorResult(err), nil
	}
	explicit, err := elemset.FromSymbols(input.Exclude)
	if err != nil {
		return errorResult(err), nil
	}
	grouped, err := elemset.Groups(input.ExcludeGroups...)
	if err != nil {
		return errorResult(err), nil
	}

	taskCount := input.TaskCount
	if taskCount <= 0 {
		taskCount = h.cfg.TaskCount
	}

	result, err := h.deps.Search.Run(ctx, pipeline.RunInput{
		SearchName: input.Name,
		Elements:   include,
		Exclude:    elemset.Union(grouped, explicit),
		Constraints: query.Constraints{
			MaxSites:    firstPositive(input.MaxSites, h.cfg.MaxSites),
			NumElements: firstPositive(input.NumElements, h.cfg.NumElements),
		},
		TaskCount:   taskCount,
		FilterOrder: input.FilterOrder,
		ChunkSize:   h.cfg.ChunkSize,
	})
	if err != nil {
		return errorResult(err), nil
	}

	out := SearchRunOutput{
		RunID:       result.RunID,
		States:      result.States,
		CacheHit:    result.CacheHit,
		RecordCount: len(result.Records),
	}
	if input.IncludeRecords {
		out.Records = result.Records
	}
	return successResult(out)
}

// HandleHistoryList handles the history_list tool call.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.deps.DB == nil {
		return errorResult(errors.NewInvalidRequest("run history is not available on this server")), nil
	}

	input, err := decode[HistoryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.List(h.deps.DB, history.ListInput{
		SearchName: input.SearchName,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SearchError
	if stderrors.As(err, &sErr) {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result with JSON content.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
