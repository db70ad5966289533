package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/pharmalink/internal/config"
	appserver "github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	db, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.Load("")
	require.NoError(t, err)
	svc, err := appserver.InitializeServices(context.Background(), db, cfg)
	require.NoError(t, err)
	return NewMCPServer(svc, 8080)
}

func TestToolsAreRegistered(t *testing.T) {
	s := newTestServer(t)
	require.NotNil(t, s.GetServer())

	response := s.GetServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	rpcResponse, ok := response.(mcp.JSONRPCResponse)
	require.True(t, ok, "unexpected response %T", response)
	result, ok := rpcResponse.Result.(mcp.ListToolsResult)
	require.True(t, ok, "unexpected result %T", rpcResponse.Result)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_submissions",
		"get_submission",
		"list_allowed_actions",
		"get_document_requirements",
		"list_documents",
		"list_results",
	}, names)
}

func TestGetToolInstructions(t *testing.T) {
	assert.Contains(t, getToolInstructions("submission"), "list_allowed_actions")
	assert.Contains(t, getToolInstructions("document"), "get_document_requirements")
	assert.Contains(t, getToolInstructions("result"), "list_results")

	all := getToolInstructions("all")
	assert.Contains(t, all, "list_submissions")
	assert.Contains(t, all, "list_documents")

	assert.Contains(t, getToolInstructions("billing"), "Unknown category")
}
