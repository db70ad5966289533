package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/pharmalink/internal/api"
	"github.com/rxtech-lab/pharmalink/internal/api/middleware"
	"github.com/rxtech-lab/pharmalink/internal/config"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/mcp"
	"github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

// newAuthenticator prefers the identity provider's JWKS and falls back to a
// shared HS256 secret.
func newAuthenticator(cfg *config.Config) (*utils.JwtAuthenticator, error) {
	switch {
	case cfg.Auth.JWKSURI != "":
		return utils.NewJwtAuthenticator(cfg.Auth.JWKSURI), nil
	case cfg.Auth.JWTSecret != "":
		return utils.NewHMACAuthenticator(cfg.Auth.JWTSecret), nil
	default:
		return nil, errors.New("JWKS_URI or JWT_SECRET must be set")
	}
}

func configureAndStartServer(ctx context.Context, dbService services.DBService, cfg *config.Config, port int) (*api.APIServer, *server.Services, int, error) {
	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return nil, nil, 0, err
	}

	// Initialize services and hooks
	svc, err := server.InitializeServices(ctx, dbService, cfg)
	if err != nil {
		return nil, nil, 0, err
	}
	statusHistoryHook, closedSubmissionHook := server.InitializeHooks()
	server.RegisterHooks(svc.Hooks, statusHistoryHook, closedSubmissionHook)

	svc.Tasks.Start(ctx)
	server.StartDocumentExpiry(ctx, svc.Tasks, svc.Documents, cfg.Documents.ExpireAfter(), cfg.Documents.SweepInterval())

	apiServer := api.NewAPIServer(svc, api.Options{
		Auth: middleware.AuthConfig{
			ResourceID:       cfg.Auth.Audience,
			JWTAuthenticator: authenticator,
			SkipWellKnown:    true,
		},
		ConnectSecret:    cfg.DocuSign.ConnectSecret,
		ResourceMetadata: api.ResourceMetadata{AuthorizationServer: cfg.Auth.AuthorizationServer},
	})
	apiServer.SetMCPServer(mcp.NewMCPServer(svc, cfg.Server.Port))
	apiServer.EnableStreamableHttp()

	var portPtr *int
	if port != 0 {
		portPtr = &port
	}
	startedPort, err := apiServer.Start(portPtr)
	if err != nil {
		svc.Tasks.Stop()
		return nil, nil, 0, err
	}
	return apiServer, svc, startedPort, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dbService, err := services.NewDBService(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to initialize database service:", err)
	}
	defer dbService.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiServer, svc, startedPort, err := configureAndStartServer(ctx, dbService, cfg, cfg.Server.Port)
	if err != nil {
		log.Fatal("Failed to start API server:", err)
	}
	logger.Info(ctx, "API server started", "port", startedPort)

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info(ctx, "shutting down server")

	if err := apiServer.Shutdown(); err != nil {
		logger.Error(ctx, "error shutting down API server", "error", err)
	}
	svc.Tasks.Stop()

	logger.Info(ctx, "server shut down successfully")
}
