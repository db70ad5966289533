package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewListDocumentsTool(documentService services.DocumentService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents attached to a submission with their type, status and signature state."),
		mcp.WithNumber("submission_id",
			mcp.Required(),
			mcp.Description("ID of the submission"),
		),
		mcp.WithString("type",
			mcp.Description("Filter by document type, e.g. NDA or MTA"),
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

		f := services.Filter{Limit: services.MaxPageSize}
		if raw := request.GetString("type", ""); raw != "" {
			docType, err := models.ParseDocumentType(raw)
			if err != nil {
				return errorResult("listing documents", err)
			}
			f = f.Where("type", services.OpEq, docType)
		}
		page, err := documentService.ListDocuments(actor, id, f)
		if err != nil {
			return errorResult("listing documents", err)
		}
		return jsonResult("Documents listed", map[string]interface{}{
			"documents": page.Items,
			"total":     page.Total,
		})
	}

	return tool, handler
}
