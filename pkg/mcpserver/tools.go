package mcpserver

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/namespace"
)

// registerTools registers all memory tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.storeMemoryTool(),
		s.retrieveMemoriesTool(),
		s.getMemoryTool(),
		s.deleteMemoryTool(),
		s.randomMemoryTool(),
		s.addLabelsTool(),
		s.delLabelsTool(),
		s.memoryStatsTool(),
		s.trendingLabelsTool(),
	)
}

func (s *Server) storeMemoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("store_memory",
		mcplib.WithDescription("Store a memory. Returns the new memory's id and, when similar content already exists, a similarity band (loose, related, very-similar, duplicate)."),
		mcplib.WithString("content",
			mcplib.Required(),
			mcplib.Description("The text content to remember"),
		),
		mcplib.WithString("labels",
			mcplib.Description("Comma-separated labels to tag the memory with"),
		),
		mcplib.WithString("source",
			mcplib.Description("Where this memory came from (free text)"),
		),
		mcplib.WithString("namespace",
			mcplib.Description("Namespace to store into; defaults to the server's namespace"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleStoreMemory}
}

func (s *Server) retrieveMemoriesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("retrieve_memories",
		mcplib.WithDescription("Retrieve memories by semantic similarity and/or fuzzy label/source filters. Prefix a filter pattern with ! to exclude matches."),
		mcplib.WithString("query",
			mcplib.Description("Free-text semantic query; omit to list by recency"),
		),
		mcplib.WithString("labels",
			mcplib.Description("Label filter expression, e.g. \"rust, !async\""),
		),
		mcplib.WithString("source",
			mcplib.Description("Source filter expression"),
		),
		mcplib.WithString("namespace",
			mcplib.Description("Namespace to search; defaults to the server's namespace"),
		),
		mcplib.WithNumber("num_results",
			mcplib.Description("Maximum number of results (default 10)"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRetrieveMemories}
}

func (s *Server) getMemoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_memory",
		mcplib.WithDescription("Fetch a single memory by its id"),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("The memory id"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetMemory}
}

func (s *Server) deleteMemoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("delete_memory",
		mcplib.WithDescription("Delete a memory by its id. Deleting an id that does not exist is not an error."),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("The memory id"),
		),
		mcplib.WithDestructiveHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleDeleteMemory}
}

func (s *Server) randomMemoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("random_memory",
		mcplib.WithDescription("Pick one memory uniformly at random from those matching the filters"),
		mcplib.WithString("labels",
			mcplib.Description("Label filter expression"),
		),
		mcplib.WithString("source",
			mcplib.Description("Source filter expression"),
		),
		mcplib.WithString("namespace",
			mcplib.Description("Namespace to pick from; defaults to the server's namespace"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRandomMemory}
}

func (s *Server) addLabelsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("add_labels",
		mcplib.WithDescription("Add labels to an existing memory (set union, case-insensitive)"),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("The memory id"),
		),
		mcplib.WithString("labels",
			mcplib.Required(),
			mcplib.Description("Comma-separated labels to add"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAddLabels}
}

func (s *Server) delLabelsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("del_labels",
		mcplib.WithDescription("Remove labels from an existing memory. Removing a label that is not present is a no-op."),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("The memory id"),
		),
		mcplib.WithString("labels",
			mcplib.Required(),
			mcplib.Description("Comma-separated labels to remove"),
		),
		mcplib.WithIdempotentHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleDelLabels}
}

func (s *Server) memoryStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("memory_stats",
		mcplib.WithDescription("Count memories matching the filters and report which label/source spellings the fuzzy patterns matched"),
		mcplib.WithString("labels",
			mcplib.Description("Label filter expression"),
		),
		mcplib.WithString("source",
			mcplib.Description("Source filter expression"),
		),
		mcplib.WithString("namespace",
			mcplib.Description("Namespace to count; defaults to the server's namespace"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleMemoryStats}
}

func (s *Server) trendingLabelsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("trending_labels",
		mcplib.WithDescription("Rank labels by recent use with exponential decay, so repeated recent labels score higher than one-off old ones"),
		mcplib.WithNumber("days",
			mcplib.Description("Window in days (default 30)"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of labels to return"),
		),
		mcplib.WithString("namespace",
			mcplib.Description("Namespace to analyze; defaults to the server's namespace"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleTrendingLabels}
}

// memoryPayload is the wire shape of a memory record.
type memoryPayload struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Labels     []string  `json:"labels"`
	Source     string    `json:"source,omitempty"`
	Namespace  string    `json:"namespace,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	TimeAgo    string    `json:"time_ago"`
	Similarity *float64  `json:"similarity,omitempty"`
	Band       string    `json:"band,omitempty"`
}

func payloadFrom(record memory.Record) memoryPayload {
	labels := record.Labels
	if labels == nil {
		labels = []string{}
	}
	return memoryPayload{
		ID:        record.ID,
		Content:   record.Content,
		Labels:    labels,
		Source:    record.Source,
		Namespace: record.Namespace,
		CreatedAt: record.CreatedAt,
		TimeAgo:   formatTimeAgo(record.CreatedAt, time.Now().UTC()),
	}
}

func (s *Server) handleStoreMemory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return mcplib.NewToolResultError("content is required"), nil
	}

	result, err := s.engine.Store(ctx, engine.StoreParams{
		Content:   content,
		Labels:    listArg(args, "labels"),
		Source:    stringArg(args, "source"),
		Namespace: s.resolveNamespace(ctx, args),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to store memory", err), nil
	}

	payload := struct {
		ID        string    `json:"id"`
		Labels    []string  `json:"labels"`
		Namespace string    `json:"namespace,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		Similar   *struct {
			ID         string  `json:"id"`
			Similarity float64 `json:"similarity"`
			Band       string  `json:"band"`
		} `json:"similar,omitempty"`
	}{
		ID:        result.Record.ID,
		Labels:    result.Record.Labels,
		Namespace: result.Record.Namespace,
		CreatedAt: result.Record.CreatedAt,
	}
	if result.Similar != nil {
		payload.Similar = &struct {
			ID         string  `json:"id"`
			Similarity float64 `json:"similarity"`
			Band       string  `json:"band"`
		}{result.Similar.ID, result.Similar.Similarity, string(result.Similar.Band)}
	}
	return jsonResult(payload)
}

func (s *Server) handleRetrieveMemories(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	query := stringArg(args, "query")

	results, err := s.engine.Retrieve(ctx, engine.RetrieveParams{
		Query:      query,
		Labels:     filterArg(args, "labels"),
		Sources:    filterArg(args, "source"),
		Namespace:  s.resolveNamespace(ctx, args),
		NumResults: intArg(args, "num_results", 0),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to retrieve memories", err), nil
	}

	memories := make([]memoryPayload, len(results))
	for i, r := range results {
		memories[i] = payloadFrom(r.Record)
		if query != "" {
			similarity := r.Similarity
			memories[i].Similarity = &similarity
			memories[i].Band = string(r.Band)
		}
	}
	return jsonResult(struct {
		Count    int             `json:"count"`
		Memories []memoryPayload `json:"memories"`
	}{len(memories), memories})
}

func (s *Server) handleGetMemory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if id == "" {
		return mcplib.NewToolResultError("id is required"), nil
	}

	record, err := s.engine.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return mcplib.NewToolResultError("memory not found: " + id), nil
		}
		return mcplib.NewToolResultErrorFromErr("failed to get memory", err), nil
	}
	return jsonResult(payloadFrom(record))
}

func (s *Server) handleDeleteMemory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if id == "" {
		return mcplib.NewToolResultError("id is required"), nil
	}

	existed, err := s.engine.Delete(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to delete memory", err), nil
	}
	return jsonResult(struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}{id, existed})
}

func (s *Server) handleRandomMemory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()

	record, err := s.engine.RandomPick(ctx, engine.PickParams{
		Labels:    filterArg(args, "labels"),
		Sources:   filterArg(args, "source"),
		Namespace: s.resolveNamespace(ctx, args),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to pick memory", err), nil
	}
	if record == nil {
		return mcplib.NewToolResultText("no memories match the given filters"), nil
	}
	return jsonResult(payloadFrom(*record))
}

func (s *Server) handleAddLabels(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	labels := listArg(args, "labels")
	if id == "" || len(labels) == 0 {
		return mcplib.NewToolResultError("id and labels are required"), nil
	}

	record, err := s.engine.AddLabels(ctx, id, labels)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return mcplib.NewToolResultError("memory not found: " + id), nil
		}
		return mcplib.NewToolResultErrorFromErr("failed to add labels", err), nil
	}
	return jsonResult(payloadFrom(record))
}

func (s *Server) handleDelLabels(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["id"].(string)
	labels := listArg(args, "labels")
	if id == "" || len(labels) == 0 {
		return mcplib.NewToolResultError("id and labels are required"), nil
	}

	record, err := s.engine.RemoveLabels(ctx, id, labels)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return mcplib.NewToolResultError("memory not found: " + id), nil
		}
		return mcplib.NewToolResultErrorFromErr("failed to remove labels", err), nil
	}
	return jsonResult(payloadFrom(record))
}

func (s *Server) handleMemoryStats(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()

	stats, err := s.engine.Stats(ctx, engine.StatsParams{
		Labels:    filterArg(args, "labels"),
		Sources:   filterArg(args, "source"),
		Namespace: s.resolveNamespace(ctx, args),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to compute stats", err), nil
	}
	return jsonResult(struct {
		Count          int      `json:"count"`
		NamespaceTotal int      `json:"namespace_total"`
		Percentage     float64  `json:"percentage"`
		MatchedLabels  []string `json:"matched_labels"`
		MatchedSources []string `json:"matched_sources"`
	}{stats.Count, stats.NamespaceTotal, stats.Percentage, stats.MatchedLabels, stats.MatchedSources})
}

func (s *Server) handleTrendingLabels(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	args := req.GetArguments()

	rows, err := s.engine.Trending(ctx, engine.TrendingParams{
		Days:      intArg(args, "days", 0),
		Limit:     intArg(args, "limit", 0),
		Namespace: s.resolveNamespace(ctx, args),
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to compute trending labels", err), nil
	}

	type trendingLabel struct {
		Label    string  `json:"label"`
		Score    float64 `json:"score"`
		TopToken string  `json:"top_token"`
	}
	labels := make([]trendingLabel, len(rows))
	for i, row := range rows {
		labels[i] = trendingLabel{row.Label, row.Score, row.TopToken}
	}
	return jsonResult(struct {
		Labels []trendingLabel `json:"labels"`
	}{labels})
}

// resolveNamespace picks the namespace for a call: explicit argument first,
// then any namespace bound to the request context, then the server default.
func (s *Server) resolveNamespace(ctx context.Context, args map[string]interface{}) string {
	if ns, ok := args["namespace"].(string); ok && ns != "" {
		return ns
	}
	if ns, ok := namespace.FromContext(ctx); ok && !ns.IsAll() {
		return string(ns)
	}
	return s.defaultNamespace
}

func jsonResult(payload interface{}) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// filterArg returns a filter expression: a string passes through, a list is
// joined into one comma-separated expression.
func filterArg(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// listArg returns labels given as either a comma-separated string or a list.
func listArg(args map[string]interface{}, key string) []string {
	return engine.SplitLabelList(filterArg(args, key))
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return fallback
}

// formatTimeAgo renders a creation time as a rough human distance.
func formatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/(24*30)), "month")
	default:
		return plural(int(d.Hours()/(24*365)), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return strconv.Itoa(n) + " " + unit + "s ago"
}
