package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewGetDocumentRequirementsTool(submissionService services.SubmissionService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_document_requirements",
		mcp.WithDescription("Show the document checklist of a submission: every document type its CRO service requires, whether a signed copy exists and which types are still missing before the submission can be submitted."),
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

		if _, err := submissionService.GetSubmissionForActor(actor, id); err != nil {
			return errorResult("getting submission", err)
		}
		checklist, err := submissionService.GetRequiredDocuments(id)
		if err != nil {
			return errorResult("resolving required documents", err)
		}

		return jsonResult("Document requirements", map[string]interface{}{
			"submission_id": id,
			"documents":     checklist,
			"complete":      models.HasRequiredDocuments(checklist),
			"missing":       models.MissingDocumentTypes(checklist),
		})
	}

	return tool, handler
}
