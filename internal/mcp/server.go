package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/models"
	appserver "github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/tools"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

type MCPServer struct {
	server *server.MCPServer
}

func NewMCPServer(svc *appserver.Services, serverPort int) *MCPServer {
	mcpServer := &MCPServer{}
	mcpServer.InitializeTools(svc, serverPort)
	return mcpServer
}

func (s *MCPServer) InitializeTools(svc *appserver.Services, serverPort int) {
	srv := server.NewMCPServer(
		"PharmaLink MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv.AddPrompt(mcp.NewPrompt("pharmalink-usage",
		mcp.WithPromptDescription("Instructions and guidance for using PharmaLink MCP tools"),
		mcp.WithArgument("tool_category",
			mcp.ArgumentDescription("Category of tools to get instructions for (submission, document, result, or all)"),
			mcp.RequiredArgument(),
		),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		category := request.Params.Arguments["tool_category"]
		if category == "" {
			return nil, fmt.Errorf("tool_category is required")
		}

		instructions := getToolInstructions(category)

		return mcp.NewGetPromptResult(
			fmt.Sprintf("PharmaLink MCP Tools - %s", category),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleUser,
					mcp.NewTextContent(instructions),
				),
			},
		), nil
	})

	// Submission Tools
	listSubmissionsTool, listSubmissionsHandler := tools.NewListSubmissionsTool(svc.Submissions)
	srv.AddTool(listSubmissionsTool, listSubmissionsHandler)

	getSubmissionTool, getSubmissionHandler := tools.NewGetSubmissionTool(svc.Submissions, serverPort)
	srv.AddTool(getSubmissionTool, getSubmissionHandler)

	listAllowedActionsTool, listAllowedActionsHandler := tools.NewListAllowedActionsTool(svc.Submissions)
	srv.AddTool(listAllowedActionsTool, listAllowedActionsHandler)

	// Document Tools
	getDocumentRequirementsTool, getDocumentRequirementsHandler := tools.NewGetDocumentRequirementsTool(svc.Submissions)
	srv.AddTool(getDocumentRequirementsTool, getDocumentRequirementsHandler)

	listDocumentsTool, listDocumentsHandler := tools.NewListDocumentsTool(svc.Documents)
	srv.AddTool(listDocumentsTool, listDocumentsHandler)

	// Result Tools
	listResultsTool, listResultsHandler := tools.NewListResultsTool(svc.Results)
	srv.AddTool(listResultsTool, listResultsHandler)

	s.server = srv
}

// GetServer returns the underlying mcp-go server
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}

// StreamableHTTPServer serves the tools over the streamable HTTP transport.
// The caller must put the Actor into each request context.
func (s *MCPServer) StreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server)
}

// Start serves the tools over stdio on behalf of actor.
func (s *MCPServer) Start(actor models.Actor) error {
	return server.ServeStdio(s.server, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return utils.WithActor(ctx, actor)
	}))
}

func getToolInstructions(category string) string {
	switch category {
	case "submission":
		return `Submission Tools:

1. list_submissions - List visible submissions, optionally by status
   Usage: Find submissions waiting on you, e.g. status=PRICING_PROVIDED for pharma or SUBMITTED for a CRO

2. get_submission - Get a submission with its next statuses and a web link
   Usage: Inspect pricing, timestamps and where the workflow can go next

3. list_allowed_actions - Actions the current user may take now
   Usage: Check before suggesting submit, approve, start_work, complete, cancel or reject`

	case "document":
		return `Document Tools:

1. get_document_requirements - Required documents and their signature state
   Usage: A submission can only be submitted once every required document is signed

2. list_documents - Documents attached to a submission
   Usage: Check which agreements are drafts, waiting for signature, signed or expired`

	case "result":
		return `Result Tools:

1. list_results - Results uploaded by the CRO for a submission
   Usage: Follow processing, quality control and review of experimental data`

	case "all":
		return getToolInstructions("submission") + "\n\n" +
			getToolInstructions("document") + "\n\n" +
			getToolInstructions("result")

	default:
		return fmt.Sprintf("Unknown category: %s. Available categories: submission, document, result, all", category)
	}
}
