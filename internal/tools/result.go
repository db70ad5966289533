package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

// jsonResult renders v as "<prefix>: <json>" in a single text content.
func jsonResult(prefix string, v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(prefix + ": " + string(data)),
		},
	}, nil
}

// errorResult reports err to the assistant, naming its kind when it is a
// domain error.
func errorResult(action string, err error) (*mcp.CallToolResult, error) {
	if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		return mcp.NewToolResultError(fmt.Sprintf("Error %s (%s): %v", action, kind, err)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error %s: %v", action, err)), nil
}

func requiredID(request mcp.CallToolRequest, name string) (uint, error) {
	id := request.GetInt(name, 0)
	if id <= 0 {
		return 0, fmt.Errorf("%s is required", name)
	}
	return uint(id), nil
}
