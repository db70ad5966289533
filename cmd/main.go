package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/pharmalink/internal/config"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

// pharmalink bootstraps a deployment: it creates the first system
// administrator, who provisions everyone else through the API, and issues
// HS256 tokens for setups that run without an identity provider.
func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var enableLog = flag.Bool("log", false, "Enable logging output")
	var configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "Path to the YAML config file")
	var createAdmin = flag.Bool("create-admin", false, "Create a system administrator")
	var issueToken = flag.Bool("issue-token", false, "Print a bearer token signed with JWT_SECRET")
	var subject = flag.String("subject", "", "Token subject of the user")
	var email = flag.String("email", "", "Email of the administrator to create")
	var name = flag.String("name", "", "Display name of the administrator to create")
	var ttl = flag.Duration("ttl", 24*time.Hour, "Lifetime of an issued token")
	flag.Parse()

	if !*enableLog {
		log.SetOutput(io.Discard)
	}

	if *showVersion {
		fmt.Printf("PharmaLink\nVersion: %s\nCommit: %s\nBuilt: %s\n", Version, CommitHash, BuildTime)
		return
	}
	if !*createAdmin && !*issueToken {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("Failed to load config:", err)
	}

	if *createAdmin {
		dbService, err := services.NewDBService(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			fatal("Failed to initialize database:", err)
		}
		user, err := createSystemAdmin(dbService, *subject, *email, *name)
		dbService.Close()
		if err != nil {
			fatal("Failed to create administrator:", err)
		}
		fmt.Printf("Created system administrator %d (%s)\n", user.ID, user.Subject)
	}

	if *issueToken {
		if cfg.Auth.JWTSecret == "" {
			fatal("JWT_SECRET is not configured")
		}
		token, err := utils.IssueHMACToken(cfg.Auth.JWTSecret, *subject, *ttl)
		if err != nil {
			fatal("Failed to issue token:", err)
		}
		fmt.Println(token)
	}
}

// createSystemAdmin inserts an administrator directly. The API refuses to
// create users without an administrator, so the first one comes from here.
func createSystemAdmin(dbService services.DBService, subject, email, name string) (*models.User, error) {
	users := services.NewUserService(dbService.GetDB())
	// the bootstrap actor only exists for this call
	bootstrap := models.Actor{Role: models.UserRoleSystemAdmin}
	return users.CreateUser(bootstrap, services.CreateUserInput{
		Subject: subject,
		Email:   email,
		Name:    name,
		Role:    string(models.UserRoleSystemAdmin),
	})
}

func fatal(v ...interface{}) {
	fmt.Fprintln(os.Stderr, v...)
	os.Exit(1)
}
