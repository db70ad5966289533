package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

// ResourceMetadata describes this server as an OAuth protected resource so
// MCP clients can discover where to obtain tokens.
type ResourceMetadata struct {
	AuthorizationServer string
	// Resource defaults to the public URL of the MCP endpoint
	Resource string
}

func (s *APIServer) handleOAuthProtectedResource(c *fiber.Ctx) error {
	meta := s.opts.ResourceMetadata
	if meta.AuthorizationServer == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no authorization server configured"})
	}

	resource := meta.Resource
	if resource == "" {
		url, err := utils.PublicUrl(s.port, "mcp")
		if err != nil {
			return respondError(c, err)
		}
		resource = url
	}
	docs, err := utils.PublicUrl(s.port, "docs")
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"authorization_servers":    []string{meta.AuthorizationServer},
		"bearer_methods_supported": []string{"header"},
		"resource":                 resource,
		"resource_documentation":   docs,
		"scopes_supported":         []string{},
	})
}
