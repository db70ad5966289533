package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/pharmalink/internal/api"
	"github.com/rxtech-lab/pharmalink/internal/api/middleware"
	"github.com/rxtech-lab/pharmalink/internal/config"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/mcp"
	"github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		initErr = initializeAPIServer()
	})
	if initErr != nil {
		log.Printf("Failed to initialize API server: %v", initErr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

func initializeAPIServer() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dsn := cfg.Database.DSN
	if dsn == "" {
		if dsn, err = getDatabasePath(); err != nil {
			return fmt.Errorf("failed to get database path: %w", err)
		}
	}
	dbService, err := services.NewDBService(cfg.Database.Driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx := context.Background()
	svc, err := server.InitializeServices(ctx, dbService, cfg)
	if err != nil {
		return err
	}
	statusHistoryHook, closedSubmissionHook := server.InitializeHooks()
	server.RegisterHooks(svc.Hooks, statusHistoryHook, closedSubmissionHook)
	// functions are frozen between requests, so the expiry sweep is left to
	// a scheduled job instead of a ticker here
	svc.Tasks.Start(ctx)

	authenticator := utils.NewJwtAuthenticator(cfg.Auth.JWKSURI)
	if cfg.Auth.JWKSURI == "" && cfg.Auth.JWTSecret != "" {
		authenticator = utils.NewHMACAuthenticator(cfg.Auth.JWTSecret)
	}
	apiServer = api.NewAPIServer(svc, api.Options{
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

	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "PharmaLink API",
			"status":  "running",
			"version": "1.0.0",
		})
	})
	return nil
}

// getDatabasePath returns the SQLite path when no DATABASE_URL is set.
// Vercel only allows writes under /tmp.
func getDatabasePath() (string, error) {
	if os.Getenv("VERCEL") == "1" {
		return "/tmp/pharmalink.db", nil
	}

	homePath, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homePath, "pharmalink.db"), nil
}
