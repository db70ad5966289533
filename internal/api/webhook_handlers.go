package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/esign"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

// handleSignatureWebhook receives DocuSign Connect callbacks. The payload is
// checked synchronously and processed on the task queue so the provider gets
// its acknowledgement right away.
func (s *APIServer) handleSignatureWebhook(c *fiber.Ctx) error {
	const op = "API.SignatureWebhook"
	if s.svc.Signatures == nil {
		return respondError(c, apperrors.External(op, errors.New("signature provider is not configured")))
	}

	// fiber reuses the body buffer after the handler returns
	payload := append([]byte(nil), c.Body()...)

	if s.opts.ConnectSecret != "" {
		if !esign.VerifySignature(payload, c.Get(esign.SignatureHeader), s.opts.ConnectSecret) {
			logger.Warn(c.UserContext(), "rejected webhook with a bad signature")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
		}
	}
	event, err := s.svc.Signatures.ParseWebhookEvent(payload)
	if err != nil {
		return respondError(c, apperrors.Validation(op, "%v", err))
	}

	task, err := s.svc.Tasks.Enqueue(c.UserContext(), services.TaskKindSignatureWebhook, nil, func(ctx context.Context) (models.JSON, error) {
		doc, err := s.svc.Documents.ProcessSignatureWebhook(ctx, payload)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return models.JSON{"envelope_id": event.EnvelopeID, "matched": false}, nil
		}
		return models.JSON{"envelope_id": event.EnvelopeID, "matched": true, "document_id": doc.ID, "status": doc.Status}, nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": task.ID})
}
