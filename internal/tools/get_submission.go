package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewGetSubmissionTool(submissionService services.SubmissionService, serverPort int) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_submission",
		mcp.WithDescription("Get one submission with its status, pricing, the statuses it can move to and a link to open it in the web app."),
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

		sub, err := submissionService.GetSubmissionForActor(actor, id)
		if err != nil {
			return errorResult("getting submission", err)
		}
		url, err := utils.GetSubmissionUrl(serverPort, sub.ID)
		if err != nil {
			return errorResult("building submission link", err)
		}

		return jsonResult("Submission", map[string]interface{}{
			"submission":    sub,
			"next_statuses": sub.Status.NextStatuses(),
			"actions":       models.AvailableActions(sub.Status, actor.Role),
			"url":           url,
		})
	}

	return tool, handler
}
