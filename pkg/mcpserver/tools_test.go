package mcpserver_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedmock "github.com/memvault/memvault/pkg/embed/adapters/mock"
	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/mcpserver"
	storemock "github.com/memvault/memvault/pkg/memory/adapters/mock"
)

func newTestServer(t *testing.T) (*mcpserver.Server, *embedmock.MockEmbedder) {
	t.Helper()
	embedder := embedmock.NewMockEmbedder(embedmock.WithDimensions(3))
	eng := engine.New(storemock.NewMockStore(), embedder, engine.DefaultConfig())
	return mcpserver.NewServer("memvault-test", "0.0.0", eng, "agent-a"), embedder
}

func callTool(t *testing.T, s *mcpserver.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	require.True(t, ok, "tool %s not registered", name)

	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return text.Text
}

func decodeResult(t *testing.T, result *mcplib.CallToolResult, out any) {
	t.Helper()
	require.False(t, result.IsError, "tool returned error: %v", result.Content)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), out))
}

func TestRegisteredTools(t *testing.T) {
	s, _ := newTestServer(t)

	expected := []string{
		"store_memory", "retrieve_memories", "get_memory", "delete_memory",
		"random_memory", "add_labels", "del_labels", "memory_stats", "trending_labels",
	}
	tools := s.MCPServer().ListTools()
	assert.Len(t, tools, len(expected))
	for _, name := range expected {
		assert.Contains(t, tools, name)
	}
}

func TestStoreMemoryTool(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "store_memory", map[string]any{
		"content": "Prefer table-driven tests for parsers",
		"labels":  "testing, Go",
		"source":  "code-review",
	})

	var stored struct {
		ID        string    `json:"id"`
		Labels    []string  `json:"labels"`
		Namespace string    `json:"namespace"`
		CreatedAt time.Time `json:"created_at"`
	}
	decodeResult(t, result, &stored)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, []string{"testing", "Go"}, stored.Labels)
	assert.Equal(t, "agent-a", stored.Namespace, "default namespace should apply")
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestStoreMemoryToolEmptyContent(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "store_memory", map[string]any{"content": "   "})
	assert.True(t, result.IsError)
}

func TestStoreMemoryToolDuplicateFeedback(t *testing.T) {
	s, embedder := newTestServer(t)
	embedder.AddEmbedding("the same fact", []float32{1, 0, 0})

	first := callTool(t, s, "store_memory", map[string]any{"content": "the same fact"})
	var stored struct {
		ID      string `json:"id"`
		Similar *struct {
			ID         string  `json:"id"`
			Similarity float64 `json:"similarity"`
			Band       string  `json:"band"`
		} `json:"similar"`
	}
	decodeResult(t, first, &stored)
	assert.Nil(t, stored.Similar, "first write has nothing to collide with")
	firstID := stored.ID

	second := callTool(t, s, "store_memory", map[string]any{"content": "the same fact"})
	decodeResult(t, second, &stored)
	require.NotNil(t, stored.Similar)
	assert.Equal(t, firstID, stored.Similar.ID)
	assert.Equal(t, "duplicate", stored.Similar.Band)
}

func TestRetrieveMemoriesTool(t *testing.T) {
	s, embedder := newTestServer(t)
	embedder.AddEmbedding("rust borrow checker", []float32{1, 0, 0})
	embedder.AddEmbedding("go scheduler", []float32{0, 1, 0})
	embedder.AddEmbedding("ownership rules", []float32{0.9, 0.1, 0})

	callTool(t, s, "store_memory", map[string]any{"content": "rust borrow checker", "labels": "rust"})
	callTool(t, s, "store_memory", map[string]any{"content": "go scheduler", "labels": "go"})

	result := callTool(t, s, "retrieve_memories", map[string]any{
		"query":       "ownership rules",
		"num_results": float64(5),
	})

	var got struct {
		Count    int `json:"count"`
		Memories []struct {
			Content    string   `json:"content"`
			Similarity *float64 `json:"similarity"`
			Band       string   `json:"band"`
		} `json:"memories"`
	}
	decodeResult(t, result, &got)
	require.Equal(t, 2, got.Count)
	assert.Equal(t, "rust borrow checker", got.Memories[0].Content)
	require.NotNil(t, got.Memories[0].Similarity)
	assert.Greater(t, *got.Memories[0].Similarity, *got.Memories[1].Similarity)
}

func TestRetrieveMemoriesToolFilterOnly(t *testing.T) {
	s, _ := newTestServer(t)
	callTool(t, s, "store_memory", map[string]any{"content": "alpha", "labels": "rust, async"})
	callTool(t, s, "store_memory", map[string]any{"content": "beta", "labels": "rust"})
	callTool(t, s, "store_memory", map[string]any{"content": "gamma", "labels": "python"})

	result := callTool(t, s, "retrieve_memories", map[string]any{"labels": "rust, !async"})

	var got struct {
		Count    int `json:"count"`
		Memories []struct {
			Content    string   `json:"content"`
			Similarity *float64 `json:"similarity"`
		} `json:"memories"`
	}
	decodeResult(t, result, &got)
	require.Equal(t, 1, got.Count)
	assert.Equal(t, "beta", got.Memories[0].Content)
	assert.Nil(t, got.Memories[0].Similarity, "no query means no similarity score")
}

func TestGetMemoryTool(t *testing.T) {
	s, _ := newTestServer(t)
	stored := storeOne(t, s, "remember this", "notes")

	result := callTool(t, s, "get_memory", map[string]any{"id": stored})
	var got struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		TimeAgo string `json:"time_ago"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, stored, got.ID)
	assert.Equal(t, "remember this", got.Content)
	assert.Equal(t, "just now", got.TimeAgo)
}

func TestGetMemoryToolNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "get_memory", map[string]any{"id": "no-such-id"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestDeleteMemoryTool(t *testing.T) {
	s, _ := newTestServer(t)
	stored := storeOne(t, s, "ephemeral", "")

	var got struct {
		Deleted bool `json:"deleted"`
	}
	decodeResult(t, callTool(t, s, "delete_memory", map[string]any{"id": stored}), &got)
	assert.True(t, got.Deleted)

	// deleting again is fine, just reports nothing was there
	decodeResult(t, callTool(t, s, "delete_memory", map[string]any{"id": stored}), &got)
	assert.False(t, got.Deleted)
}

func TestRandomMemoryTool(t *testing.T) {
	s, _ := newTestServer(t)

	empty := callTool(t, s, "random_memory", map[string]any{})
	assert.False(t, empty.IsError)
	assert.Contains(t, resultText(t, empty), "no memories match")

	stored := storeOne(t, s, "only one", "pinned")
	var got struct {
		ID string `json:"id"`
	}
	decodeResult(t, callTool(t, s, "random_memory", map[string]any{"labels": "pinned"}), &got)
	assert.Equal(t, stored, got.ID)
}

func TestLabelTools(t *testing.T) {
	s, _ := newTestServer(t)
	stored := storeOne(t, s, "label me", "base")

	var got struct {
		Labels []string `json:"labels"`
	}
	decodeResult(t, callTool(t, s, "add_labels", map[string]any{"id": stored, "labels": "extra, BASE"}), &got)
	assert.Equal(t, []string{"base", "extra"}, got.Labels)

	decodeResult(t, callTool(t, s, "del_labels", map[string]any{"id": stored, "labels": "Base, missing"}), &got)
	assert.Equal(t, []string{"extra"}, got.Labels)

	missing := callTool(t, s, "add_labels", map[string]any{"id": "nope", "labels": "x"})
	assert.True(t, missing.IsError)
}

func TestMemoryStatsTool(t *testing.T) {
	s, _ := newTestServer(t)
	callTool(t, s, "store_memory", map[string]any{"content": "a", "labels": "mcp"})
	callTool(t, s, "store_memory", map[string]any{"content": "b", "labels": "MCP-ce"})
	callTool(t, s, "store_memory", map[string]any{"content": "c", "labels": "other"})

	result := callTool(t, s, "memory_stats", map[string]any{"labels": "mcp"})
	var got struct {
		Count          int      `json:"count"`
		NamespaceTotal int      `json:"namespace_total"`
		Percentage     float64  `json:"percentage"`
		MatchedLabels  []string `json:"matched_labels"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 3, got.NamespaceTotal)
	assert.Equal(t, []string{"MCP-ce", "mcp"}, got.MatchedLabels)
}

func TestTrendingLabelsTool(t *testing.T) {
	s, _ := newTestServer(t)
	callTool(t, s, "store_memory", map[string]any{"content": "a", "labels": "golang"})
	callTool(t, s, "store_memory", map[string]any{"content": "b", "labels": "Golang"})
	callTool(t, s, "store_memory", map[string]any{"content": "c", "labels": "python"})

	result := callTool(t, s, "trending_labels", map[string]any{"days": float64(7)})
	var got struct {
		Labels []struct {
			Label    string  `json:"label"`
			Score    float64 `json:"score"`
			TopToken string  `json:"top_token"`
		} `json:"labels"`
	}
	decodeResult(t, result, &got)
	require.Len(t, got.Labels, 2)
	assert.Equal(t, "golang", got.Labels[0].Label)
	assert.Greater(t, got.Labels[0].Score, got.Labels[1].Score)
}

func TestNamespaceArgumentOverridesDefault(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "store_memory", map[string]any{
		"content":   "scoped elsewhere",
		"namespace": "agent-b",
	})
	var stored struct {
		Namespace string `json:"namespace"`
	}
	decodeResult(t, result, &stored)
	assert.Equal(t, "agent-b", stored.Namespace)

	var got struct {
		Count int `json:"count"`
	}
	decodeResult(t, callTool(t, s, "retrieve_memories", map[string]any{}), &got)
	assert.Zero(t, got.Count, "default namespace should not see agent-b records")

	decodeResult(t, callTool(t, s, "retrieve_memories", map[string]any{"namespace": "agent-b"}), &got)
	assert.Equal(t, 1, got.Count)
}

func storeOne(t *testing.T, s *mcpserver.Server, content, labels string) string {
	t.Helper()
	args := map[string]any{"content": content}
	if labels != "" {
		args["labels"] = labels
	}
	var stored struct {
		ID string `json:"id"`
	}
	decodeResult(t, callTool(t, s, "store_memory", args), &stored)
	return stored.ID
}
