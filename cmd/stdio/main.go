package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rxtech-lab/pharmalink/internal/api"
	"github.com/rxtech-lab/pharmalink/internal/api/middleware"
	"github.com/rxtech-lab/pharmalink/internal/config"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/mcp"
	"github.com/rxtech-lab/pharmalink/internal/server"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func configureAndStartServer(ctx context.Context, dbService services.DBService, cfg *config.Config, port int) (*api.APIServer, *server.Services, int, error) {
	if cfg.Auth.JWTSecret == "" && cfg.Auth.JWKSURI == "" {
		return nil, nil, 0, errors.New("JWT_SECRET or JWKS_URI must be set")
	}

	svc, err := server.InitializeServices(ctx, dbService, cfg)
	if err != nil {
		return nil, nil, 0, err
	}
	statusHistoryHook, closedSubmissionHook := server.InitializeHooks()
	server.RegisterHooks(svc.Hooks, statusHistoryHook, closedSubmissionHook)
	svc.Tasks.Start(ctx)
	server.StartDocumentExpiry(ctx, svc.Tasks, svc.Documents, cfg.Documents.ExpireAfter(), cfg.Documents.SweepInterval())

	authenticator := utils.NewJwtAuthenticator(cfg.Auth.JWKSURI)
	if cfg.Auth.JWTSecret != "" {
		authenticator = utils.NewHMACAuthenticator(cfg.Auth.JWTSecret)
	}
	apiServer := api.NewAPIServer(svc, api.Options{
		Auth:          middleware.AuthConfig{JWTAuthenticator: authenticator},
		ConnectSecret: cfg.DocuSign.ConnectSecret,
	})

	var portPtr *int
	if port != 0 {
		portPtr = &port
	}
	startedPort, err := apiServer.Start(portPtr)
	if err != nil {
		svc.Tasks.Stop()
		return nil, nil, 0, err
	}

	// Links handed out by tools point at the port actually bound
	apiServer.SetMCPServer(mcp.NewMCPServer(svc, startedPort))
	return apiServer, svc, startedPort, nil
}

func main() {
	// Command line flags
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var enableLog = flag.Bool("log", false, "Enable logging output")
	var configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "Path to the YAML config file")
	flag.Parse()

	// stdout belongs to the MCP protocol; logs go to stderr or nowhere
	logOutput := io.Writer(os.Stderr)
	if !*enableLog {
		logOutput = io.Discard
	}
	log.SetOutput(logOutput)

	if *showVersion {
		fmt.Fprintf(os.Stderr, "PharmaLink MCP Server\nVersion: %s\nCommit: %s\nBuilt: %s\n", Version, CommitHash, BuildTime)
		return
	}

	if *showHelp {
		fmt.Fprintf(os.Stderr, "PharmaLink MCP Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --version    Show version information\n")
		fmt.Fprintf(os.Stderr, "  --help       Show this help message\n")
		fmt.Fprintf(os.Stderr, "  --log        Enable logging output\n")
		fmt.Fprintf(os.Stderr, "  --config     Path to the YAML config file\n\n")
		fmt.Fprintf(os.Stderr, "Environment:\n")
		fmt.Fprintf(os.Stderr, "  PHARMALINK_SUBJECT  Token subject of the user the MCP tools act as\n")
		fmt.Fprintf(os.Stderr, "  JWT_SECRET          Shared secret for API bearer tokens\n\n")
		fmt.Fprintf(os.Stderr, "Database: ~/pharmalink.db (SQLite) unless DATABASE_URL is set\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitWithWriter(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, logOutput)

	dsn := cfg.Database.DSN
	if dsn == "" {
		homePath, err := os.UserHomeDir()
		if err != nil {
			log.Fatal("Failed to get home directory:", err)
		}
		dsn = filepath.Join(homePath, "pharmalink.db")
	}
	dbService, err := services.NewDBService(cfg.Database.Driver, dsn)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer dbService.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiServer, svc, port, err := configureAndStartServer(ctx, dbService, cfg, 0)
	if err != nil {
		log.Fatal("Failed to start API server:", err)
	}
	defer svc.Tasks.Stop()
	log.Printf("API server started on port %d\n", port)

	user, err := svc.Users.ResolveUser(os.Getenv("PHARMALINK_SUBJECT"))
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("PHARMALINK_SUBJECT must name a registered user:", err)
	}

	mcpServer := apiServer.GetMCPServer()
	go func() {
		if err := mcpServer.Start(user.Actor()); err != nil {
			log.SetOutput(os.Stderr)
			log.SetFlags(0)
			log.Fatal("Failed to start MCP server:", err)
		}
	}()

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("\nShutting down servers...")

	if err := apiServer.Shutdown(); err != nil {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Servers shut down successfully")
}
