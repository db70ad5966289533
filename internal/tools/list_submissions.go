package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

func NewListSubmissionsTool(submissionService services.SubmissionService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_submissions",
		mcp.WithDescription("List the submissions visible to the current user, newest first. Pharma users see their organization's submissions, CRO users the submissions sent to their services. Filter by status and page with skip/limit."),
		mcp.WithString("status",
			mcp.Description("Filter by submission status, e.g. DRAFT, SUBMITTED, IN_PROGRESS. Leave empty for all statuses"),
		),
		mcp.WithNumber("skip",
			mcp.Description("Number of submissions to skip (default: 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of submissions per page (default: 20, max: 100)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		actor, ok := utils.GetActor(ctx)
		if !ok {
			return mcp.NewToolResultError("Authentication required"), nil
		}

		f := services.Filter{
			Skip:  request.GetInt("skip", 0),
			Limit: request.GetInt("limit", services.DefaultPageSize),
		}
		if raw := request.GetString("status", ""); raw != "" {
			status, err := models.ParseSubmissionStatus(raw)
			if err != nil {
				return errorResult("listing submissions", err)
			}
			f = f.Where("status", services.OpEq, status)
		}

		page, err := submissionService.ListSubmissions(actor, f)
		if err != nil {
			return errorResult("listing submissions", err)
		}

		items := make([]map[string]interface{}, 0, len(page.Items))
		for _, sub := range page.Items {
			items = append(items, map[string]interface{}{
				"id":           sub.ID,
				"name":         sub.Name,
				"status":       sub.Status,
				"terminal":     sub.Status.IsTerminal(),
				"cro_service":  sub.CROService.Name,
				"created_at":   sub.CreatedAt,
				"submitted_at": sub.SubmittedAt,
			})
		}
		return jsonResult("Submissions listed", map[string]interface{}{
			"submissions": items,
			"pagination": map[string]interface{}{
				"total": page.Total,
				"page":  page.Page,
				"size":  page.Size,
				"pages": page.Pages,
			},
		})
	}

	return tool, handler
}
