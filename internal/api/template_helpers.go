package api

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/assets"
	"github.com/rxtech-lab/pharmalink/internal/logger"
)

var signingReturnTemplate = template.Must(template.New("signing_return").Parse(string(assets.SigningReturnHTML)))

type signingOutcome struct {
	Title   string
	Message string
	Event   string
	Success bool
}

// signingOutcomeFor maps the event query parameter DocuSign appends to the
// return URL.
func signingOutcomeFor(event string) signingOutcome {
	switch event {
	case "signing_complete":
		return signingOutcome{
			Title:   "Document signed",
			Message: "Thank you. The document status updates once the provider confirms the envelope.",
			Success: true,
		}
	case "viewing_complete":
		return signingOutcome{Title: "Document viewed", Message: "The document was viewed without changes.", Success: true}
	case "decline":
		return signingOutcome{Title: "Signing declined", Message: "The sender is notified that you declined to sign."}
	case "cancel":
		return signingOutcome{Title: "Signing postponed", Message: "You can finish signing later from the link in your email."}
	case "session_timeout", "ttl_expired":
		return signingOutcome{Title: "Session expired", Message: "Request a new signing link from the document page."}
	default:
		return signingOutcome{Title: "Signing session ended", Message: "The signing session ended unexpectedly."}
	}
}

// renderTemplate renders tmpl with data as an HTML response
func renderTemplate(c *fiber.Ctx, tmpl *template.Template, data interface{}) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logger.Error(c.UserContext(), "failed to render template", "template", tmpl.Name(), "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Error rendering page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

// handleSigningReturn is the page signers land on after embedded signing.
func (s *APIServer) handleSigningReturn(c *fiber.Ctx) error {
	event := c.Query("event")
	outcome := signingOutcomeFor(event)
	outcome.Event = event
	return renderTemplate(c, signingReturnTemplate, outcome)
}
