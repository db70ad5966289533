package esign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the HMAC of a Connect payload.
const SignatureHeader = "X-DocuSign-Signature-1"

var ErrInvalidPayload = errors.New("invalid webhook payload")

// connectPayload covers both the JSON SIM format ("data.envelopeSummary") and
// the flat aggregate format.
type connectPayload struct {
	Event      string `json:"event"`
	EnvelopeID string `json:"envelopeId"`
	Status     string `json:"status"`
	Data       *struct {
		EnvelopeID      string `json:"envelopeId"`
		EnvelopeSummary *struct {
			Status string `json:"status"`
		} `json:"envelopeSummary"`
	} `json:"data"`
}

// ParseConnectEvent extracts the envelope id and status from a DocuSign
// Connect callback body.
func ParseConnectEvent(payload []byte) (*WebhookEvent, error) {
	var p connectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event := &WebhookEvent{
		EnvelopeID: p.EnvelopeID,
		Status:     NormalizeStatus(p.Status),
		Event:      p.Event,
	}
	if p.Data != nil {
		if p.Data.EnvelopeID != "" {
			event.EnvelopeID = p.Data.EnvelopeID
		}
		if p.Data.EnvelopeSummary != nil && p.Data.EnvelopeSummary.Status != "" {
			event.Status = NormalizeStatus(p.Data.EnvelopeSummary.Status)
		}
	}
	if event.Status == "" && strings.HasPrefix(p.Event, "envelope-") {
		event.Status = NormalizeStatus(strings.TrimPrefix(p.Event, "envelope-"))
	}
	if event.EnvelopeID == "" {
		return nil, fmt.Errorf("%w: missing envelope id", ErrInvalidPayload)
	}
	return event, nil
}

// ComputeSignature returns the base64 HMAC-SHA256 of payload under secret.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a Connect HMAC header in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
