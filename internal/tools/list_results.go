package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewListResultsTool(resultService services.ResultService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_results",
		mcp.WithDescription("List the results a CRO uploaded for a submission, with their processing status and quality control outcome."),
		mcp.WithNumber("submission_id",
			mcp.Required(),
			mcp.Description("ID of the submission"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		actor, ok := utils.GetActor(ctx)
		if !ok {
			return mcp.NewToolResultError("Authentication required"), nil
		}
		id, err := requiredID(request, "submission_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		page, err := resultService.ListResults(actor, id, services.Filter{Limit: services.MaxPageSize})
		if err != nil {
			return errorResult("listing results", err)
		}
		return jsonResult("Results listed", map[string]interface{}{
			"results": page.Items,
			"total":   page.Total,
		})
	}

	return tool, handler
}
