package esign

import (
	"context"
	"strings"
)

// Provider is an e-signature service able to run embedded signing for
// documents.
type Provider interface {
	Authenticate(ctx context.Context) error
	CreateEnvelope(ctx context.Context, req EnvelopeRequest) (*EnvelopeSummary, error)
	CreateRecipientView(ctx context.Context, envelopeID string, req RecipientViewRequest) (*RecipientView, error)
	GetEnvelope(ctx context.Context, envelopeID string) (*Envelope, error)
	ParseWebhookEvent(payload []byte) (*WebhookEvent, error)
}

type EnvelopeStatus string

const (
	EnvelopeStatusCreated   EnvelopeStatus = "created"
	EnvelopeStatusSent      EnvelopeStatus = "sent"
	EnvelopeStatusDelivered EnvelopeStatus = "delivered"
	EnvelopeStatusSigned    EnvelopeStatus = "signed"
	EnvelopeStatusCompleted EnvelopeStatus = "completed"
	EnvelopeStatusDeclined  EnvelopeStatus = "declined"
	EnvelopeStatusVoided    EnvelopeStatus = "voided"
)

// NormalizeStatus lower-cases provider statuses, which arrive in either case
// depending on the API surface.
func NormalizeStatus(s string) EnvelopeStatus {
	return EnvelopeStatus(strings.ToLower(strings.TrimSpace(s)))
}

type Signer struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

type EnvelopeDocument struct {
	ID            string
	Name          string
	FileExtension string
	Content       []byte
}

type EnvelopeRequest struct {
	Documents    []EnvelopeDocument
	Recipients   []Signer
	EmailSubject string
	EmailBody    string
}

type EnvelopeSummary struct {
	EnvelopeID string         `json:"envelopeId"`
	Status     EnvelopeStatus `json:"status"`
}

type RecipientViewRequest struct {
	RecipientEmail string
	RecipientName  string
	ReturnURL      string
}

type RecipientView struct {
	URL string `json:"url"`
}

type Envelope struct {
	EnvelopeID string         `json:"envelopeId"`
	Status     EnvelopeStatus `json:"status"`
}

// WebhookEvent is the part of a provider callback the service acts on.
type WebhookEvent struct {
	EnvelopeID string
	Status     EnvelopeStatus
	Event      string
}
