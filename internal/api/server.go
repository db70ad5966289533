package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rxtech-lab/pharmalink/internal/api/middleware"
	applogger "github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/mcp"
	"github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

type Options struct {
	Auth middleware.AuthConfig
	// ConnectSecret verifies DocuSign Connect callbacks when set
	ConnectSecret    string
	ResourceMetadata ResourceMetadata
}

type APIServer struct {
	app       *fiber.App
	svc       *server.Services
	opts      Options
	mcpServer *mcp.MCPServer
	port      int
}

func NewAPIServer(svc *server.Services, opts Options) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(maxUploadSize),
	})

	// Add middleware
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(cors.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(requestContext)

	if opts.Auth.Users == nil {
		opts.Auth.Users = svc.Users
	}
	s := &APIServer{
		app:  app,
		svc:  svc,
		opts: opts,
	}
	s.setupRoutes()
	return s
}

// requestContext carries the request id into the context handed to services
// so their log lines can be correlated.
func requestContext(c *fiber.Ctx) error {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok && id != "" {
		c.SetUserContext(context.WithValue(c.UserContext(), applogger.RequestIDKey, id))
	}
	return c.Next()
}

// webhookLimiter caps unauthenticated callback traffic per source address.
func webhookLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}

func (s *APIServer) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	s.app.Get("/.well-known/oauth-protected-resource", s.handleOAuthProtectedResource)
	s.app.Get("/.well-known/oauth-protected-resource/mcp", s.handleOAuthProtectedResource)

	s.app.Get("/documents/signed", s.handleSigningReturn)

	// DocuSign Connect authenticates with its HMAC signature, not a bearer token
	s.app.Post("/webhooks/docusign", webhookLimiter(), s.handleSignatureWebhook)

	v1 := s.app.Group("/api/v1", middleware.AuthMiddleware(s.opts.Auth))

	v1.Get("/me", s.handleMe)

	v1.Get("/submissions", s.handleListSubmissions)
	v1.Post("/submissions", s.handleCreateSubmission)
	v1.Get("/submissions/:id", s.handleGetSubmission)
	v1.Patch("/submissions/:id", s.handleUpdateSubmission)
	v1.Put("/submissions/:id/status", s.handleSetSubmissionStatus)
	v1.Post("/submissions/:id/actions/:action", s.handleSubmissionAction)
	v1.Get("/submissions/:id/actions", s.handleAllowedActions)
	v1.Get("/submissions/:id/required-documents", s.handleRequiredDocuments)
	v1.Get("/submissions/:id/history", s.handleSubmissionHistory)
	v1.Post("/submissions/:id/molecules", s.handleAddSubmissionMolecule)
	v1.Delete("/submissions/:id/molecules/:moleculeId", s.handleRemoveSubmissionMolecule)

	v1.Get("/submissions/:id/documents", s.handleListDocuments)
	v1.Post("/submissions/:id/documents", s.handleUploadDocument)
	v1.Post("/submissions/:id/documents/upload-url", s.handleCreateUploadURL)
	v1.Get("/documents/:id", s.handleGetDocument)
	v1.Get("/documents/:id/download", s.handleDownloadDocument)
	v1.Put("/documents/:id/status", s.handleUpdateDocumentStatus)
	v1.Post("/documents/:id/signature", s.handleRequestSignature)
	v1.Post("/documents/:id/archive", s.handleArchiveDocument)

	v1.Get("/submissions/:id/results", s.handleListResults)
	v1.Post("/submissions/:id/results", s.handleCreateResult)
	v1.Get("/results/:id", s.handleGetResult)
	v1.Post("/results/:id/start", s.handleStartResultProcessing)
	v1.Post("/results/:id/properties", s.handleAddResultProperty)
	v1.Post("/results/:id/import", s.handleImportResultProperties)
	v1.Post("/results/:id/processed", s.handleMarkResultProcessed)
	v1.Post("/results/:id/review", s.handleReviewResult)
	v1.Post("/results/:id/apply", s.handleApplyResult)
	v1.Post("/results/:id/reject", s.handleRejectResult)

	v1.Get("/molecules", s.handleListMolecules)
	v1.Post("/molecules", s.handleCreateMolecule)
	v1.Get("/molecules/:id", s.handleGetMolecule)
	v1.Put("/molecules/:id/properties", s.handleSetMoleculeProperty)

	v1.Get("/cro-services", s.handleListCROServices)
	v1.Post("/cro-services", s.handleCreateCROService)
	v1.Get("/cro-services/:id", s.handleGetCROService)
	v1.Patch("/cro-services/:id", s.handleUpdateCROService)

	v1.Get("/organizations", s.handleListOrganizations)
	v1.Post("/organizations", s.handleCreateOrganization)
	v1.Post("/users", s.handleCreateUser)
	v1.Get("/users/:id", s.handleGetUser)

	v1.Get("/tasks", s.handleListTasks)
	v1.Get("/tasks/:id", s.handleGetTask)
}

// EnableStreamableHttp mounts the MCP server on /mcp behind the auth
// middleware. Tools see the caller through the request context.
func (s *APIServer) EnableStreamableHttp() {
	if s.mcpServer == nil {
		applogger.Warn(context.Background(), "EnableStreamableHttp called without an MCP server")
		return
	}
	streamable := s.mcpServer.StreamableHTTPServer()
	s.app.All("/mcp", middleware.AuthMiddleware(s.opts.Auth), func(c *fiber.Ctx) error {
		actor, ok := middleware.GetActor(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			streamable.ServeHTTP(w, r.WithContext(utils.WithActor(r.Context(), actor)))
		})
		return adaptor.HTTPHandler(handler)(c)
	})
}

// Start starts the server on port, or on a random available port when port
// is nil or zero.
func (s *APIServer) Start(port *int) (int, error) {
	addr := ":0"
	if port != nil && *port != 0 {
		addr = fmt.Sprintf(":%d", *port)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	go func() {
		if err := s.app.Listener(listener); err != nil {
			applogger.Error(context.Background(), "API server stopped", "error", err)
		}
	}()

	return s.port, nil
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *APIServer) GetPort() int {
	return s.port
}

// GetFiberApp exposes the app for the serverless handler and tests
func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}

// SetMCPServer sets the MCP server instance for accessing MCP methods
func (s *APIServer) SetMCPServer(mcpServer *mcp.MCPServer) {
	s.mcpServer = mcpServer
}

// GetMCPServer returns the MCP server instance
func (s *APIServer) GetMCPServer() *mcp.MCPServer {
	return s.mcpServer
}
