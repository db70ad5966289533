package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewListAllowedActionsTool(submissionService services.SubmissionService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_allowed_actions",
		mcp.WithDescription("List the workflow actions (submit, start_review, provide_pricing, approve, reject, start_work, complete, cancel) the current user may take on a submission right now."),
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

		actions, err := submissionService.AllowedActions(actor, id)
		if err != nil {
			return errorResult("listing actions", err)
		}
		return jsonResult("Allowed actions", map[string]interface{}{
			"submission_id": id,
			"actions":       actions,
		})
	}

	return tool, handler
}
