package server

import (
	"context"
	"fmt"
	"log"

	"github.com/rxtech-lab/pharmalink/internal/config"
	"github.com/rxtech-lab/pharmalink/internal/esign"
	"github.com/rxtech-lab/pharmalink/internal/hooks"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

// Services bundles everything the API and MCP servers call into.
type Services struct {
	DB          services.DBService
	Hooks       services.HookService
	Submissions services.SubmissionService
	Documents   services.DocumentService
	Results     services.ResultService
	Imports     services.ResultImportService
	Molecules   services.MoleculeService
	Catalog     services.CROCatalogService
	Users       services.UserService
	Tasks       services.TaskService

	// Storage and Signatures are nil when not configured.
	Storage    services.StorageService
	Signatures esign.Provider
}

func InitializeServices(ctx context.Context, dbService services.DBService, cfg *config.Config) (*Services, error) {
	db := dbService.GetDB()

	requirements, err := cfg.RequirementTable()
	if err != nil {
		return nil, fmt.Errorf("invalid document requirements: %w", err)
	}

	storage, err := initializeStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider, err := initializeSignatureProvider(cfg)
	if err != nil {
		return nil, err
	}

	returnURL := cfg.DocuSign.ReturnURL
	if returnURL == "" {
		returnURL, err = utils.GetSigningReturnUrl(cfg.Server.Port)
		if err != nil {
			return nil, err
		}
	}

	hookService := services.NewHookService()
	taskService := services.NewTaskService(db, services.TaskOptions{
		Workers:     cfg.Tasks.Workers,
		MaxAttempts: cfg.Tasks.MaxAttempts,
		BaseBackoff: cfg.Tasks.BaseBackoff(),
		Capacity:    cfg.Tasks.QueueCapacity,
	})

	svc := &Services{
		DB:          dbService,
		Hooks:       hookService,
		Submissions: services.NewSubmissionService(db, hookService, requirements),
		Documents:   services.NewDocumentService(db, storage, provider, returnURL),
		Results:     services.NewResultService(db, hookService),
		Imports:     services.NewResultImportService(db, taskService),
		Molecules:   services.NewMoleculeService(db),
		Catalog:     services.NewCROCatalogService(db),
		Users:       services.NewUserService(db),
		Tasks:       taskService,
		Storage:     storage,
		Signatures:  provider,
	}
	return svc, nil
}

func initializeStorage(ctx context.Context, cfg *config.Config) (services.StorageService, error) {
	if !cfg.StorageEnabled() {
		logger.Warn(ctx, "object storage not configured, document uploads are disabled")
		return nil, nil
	}
	storage, err := services.NewMinioStorageService(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return storage, nil
}

func initializeSignatureProvider(cfg *config.Config) (esign.Provider, error) {
	if !cfg.DocuSignEnabled() {
		return nil, nil
	}
	key, err := esign.LoadPrivateKey(cfg.DocuSign.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	return esign.NewDocuSignClient(esign.DocuSignConfig{
		BaseURL:        cfg.DocuSign.BaseURL,
		AuthServer:     cfg.DocuSign.AuthServer,
		IntegrationKey: cfg.DocuSign.IntegrationKey,
		UserID:         cfg.DocuSign.UserID,
		AccountID:      cfg.DocuSign.AccountID,
		PrivateKey:     key,
	}), nil
}

func InitializeHooks() (services.Hook, services.Hook) {
	statusHistoryHook := hooks.NewStatusHistoryHook()
	closedSubmissionHook := hooks.NewClosedSubmissionHook()

	return statusHistoryHook, closedSubmissionHook
}

func RegisterHooks(hookService services.HookService, statusHistoryHook services.Hook, closedSubmissionHook services.Hook) {
	if err := hookService.AddHook(statusHistoryHook); err != nil {
		log.Fatal("Failed to register status history hook:", err)
	}
	if err := hookService.AddHook(closedSubmissionHook); err != nil {
		log.Fatal("Failed to register closed submission hook:", err)
	}
}
