package esign

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	docuSignScope = "signature impersonation"
	jwtGrantType  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// Tokens are refreshed this long before DocuSign expires them.
	tokenRefreshMargin = time.Minute
)

// DocuSignConfig holds the JWT grant credentials of an integration.
type DocuSignConfig struct {
	// BaseURL is the REST base, e.g. https://demo.docusign.net/restapi
	BaseURL string
	// AuthServer is the OAuth host, e.g. account-d.docusign.com. A full URL
	// is accepted as well.
	AuthServer     string
	IntegrationKey string
	UserID         string
	AccountID      string
	PrivateKey     *rsa.PrivateKey
}

// LoadPrivateKey reads an RSA private key in PEM form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

var _ Provider = (*DocuSignClient)(nil)

// DocuSignClient talks to the DocuSign eSignature REST API v2.1.
type DocuSignClient struct {
	cfg    DocuSignConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewDocuSignClient(cfg DocuSignConfig) *DocuSignClient {
	return &DocuSignClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the transport, mainly for tests.
func (c *DocuSignClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// APIError is a non-2xx answer from DocuSign.
type APIError struct {
	StatusCode int
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("docusign: %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("docusign: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docusign: unexpected status %d", e.StatusCode)
}

// maxErrorBody bounds how much of an undecodable error body is kept.
const maxErrorBody = 512

func rawMessage(data []byte) string {
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}

func (c *DocuSignClient) authURL() (base string, audience string) {
	server := strings.TrimRight(c.cfg.AuthServer, "/")
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	if u, err := url.Parse(server); err == nil {
		return server, u.Host
	}
	return server, c.cfg.AuthServer
}

// Authenticate exchanges a signed JWT assertion for an access token.
func (c *DocuSignClient) Authenticate(ctx context.Context) error {
	if c.cfg.PrivateKey == nil {
		return fmt.Errorf("docusign: private key not configured")
	}
	base, audience := c.authURL()
	now := time.Now()

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   c.cfg.IntegrationKey,
		"sub":   c.cfg.UserID,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": docuSignScope,
	}).SignedString(c.cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.send(req, &token); err != nil {
		return err
	}
	if token.AccessToken == "" {
		return fmt.Errorf("docusign: empty access token")
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.expiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

func (c *DocuSignClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiresAt := c.accessToken, c.expiresAt
	c.mu.Unlock()
	if token != "" && time.Now().Add(tokenRefreshMargin).Before(expiresAt) {
		return token, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, nil
}

func (c *DocuSignClient) accountURL(parts ...string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/") + "/v2.1/accounts/" + url.PathEscape(c.cfg.AccountID)
	for _, p := range parts {
		base += "/" + url.PathEscape(p)
	}
	return base
}

func (c *DocuSignClient) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *DocuSignClient) send(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = rawMessage(data)
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

type envelopeDefinition struct {
	EmailSubject string             `json:"emailSubject"`
	EmailBlurb   string             `json:"emailBlurb,omitempty"`
	Status       string             `json:"status"`
	Documents    []envelopeDocument `json:"documents"`
	Recipients   struct {
		Signers []envelopeSigner `json:"signers"`
	} `json:"recipients"`
}

type envelopeDocument struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type envelopeSigner struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RecipientID  string `json:"recipientId"`
	RoutingOrder string `json:"routingOrder"`
	ClientUserID string `json:"clientUserId"`
}

// CreateEnvelope sends an envelope with one signer per recipient in routing
// order 1..n. Signers use embedded signing keyed by their email.
func (c *DocuSignClient) CreateEnvelope(ctx context.Context, req EnvelopeRequest) (*EnvelopeSummary, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("docusign: envelope has no documents")
	}
	if len(req.Recipients) == 0 {
		return nil, fmt.Errorf("docusign: envelope has no recipients")
	}

	def := envelopeDefinition{
		EmailSubject: req.EmailSubject,
		EmailBlurb:   req.EmailBody,
		Status:       string(EnvelopeStatusSent),
	}
	for i, doc := range req.Documents {
		id := doc.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		def.Documents = append(def.Documents, envelopeDocument{
			DocumentBase64: base64.StdEncoding.EncodeToString(doc.Content),
			Name:           doc.Name,
			FileExtension:  doc.FileExtension,
			DocumentID:     id,
		})
	}
	for i, signer := range req.Recipients {
		order := strconv.Itoa(i + 1)
		def.Recipients.Signers = append(def.Recipients.Signers, envelopeSigner{
			Email:        signer.Email,
			Name:         signer.Name,
			RecipientID:  order,
			RoutingOrder: order,
			ClientUserID: signer.Email,
		})
	}

	var summary EnvelopeSummary
	if err := c.do(ctx, http.MethodPost, c.accountURL("envelopes"), def, &summary); err != nil {
		return nil, err
	}
	summary.Status = NormalizeStatus(string(summary.Status))
	return &summary, nil
}

// CreateRecipientView returns the embedded signing URL for one recipient.
func (c *DocuSignClient) CreateRecipientView(ctx context.Context, envelopeID string, req RecipientViewRequest) (*RecipientView, error) {
	body := map[string]string{
		"returnUrl":            req.ReturnURL,
		"authenticationMethod": "none",
		"email":                req.RecipientEmail,
		"userName":             req.RecipientName,
		"clientUserId":         req.RecipientEmail,
	}
	var view RecipientView
	if err := c.do(ctx, http.MethodPost, c.accountURL("envelopes", envelopeID, "views", "recipient"), body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *DocuSignClient) GetEnvelope(ctx context.Context, envelopeID string) (*Envelope, error) {
	var envelope Envelope
	if err := c.do(ctx, http.MethodGet, c.accountURL("envelopes", envelopeID), nil, &envelope); err != nil {
		return nil, err
	}
	envelope.Status = NormalizeStatus(string(envelope.Status))
	return &envelope, nil
}

func (c *DocuSignClient) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	return ParseConnectEvent(payload)
}
