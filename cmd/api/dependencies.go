package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/doubloon-app/doubloon/internal/domain/auth"
	"github.com/doubloon-app/doubloon/internal/domain/category"
	"github.com/doubloon-app/doubloon/internal/domain/classify"
	"github.com/doubloon-app/doubloon/internal/domain/dashboard"
	importhandler "github.com/doubloon-app/doubloon/internal/domain/import/handler"
	"github.com/doubloon-app/doubloon/internal/domain/import/provider"
	importrepo "github.com/doubloon-app/doubloon/internal/domain/import/repository"
	importservice "github.com/doubloon-app/doubloon/internal/domain/import/service"
	"github.com/doubloon-app/doubloon/internal/domain/transaction"
	"github.com/doubloon-app/doubloon/internal/domain/user"
	"github.com/doubloon-app/doubloon/pkg/config"
	"github.com/doubloon-app/doubloon/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	UserRepo        user.UserRepo
	CategoryRepo    category.CategoryRepo
	TransactionRepo transaction.TransactionRepo
	ImportRepo      importrepo.ImportRepository

	// Services
	AuthService      *auth.Service
	ImportService    *importservice.ImportService
	ClassifyService  *classify.Service
	DashboardService *dashboard.Service

	// Handlers
	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	TransactionHandler *transaction.Handler
	ImportHandler      *importhandler.Handler
	ClassifyHandler    *classify.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.CategoryRepo.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.UserRepo = user.NewPostgresUserRepo(d.DB.Pool, d.Logger)
	d.CategoryRepo = category.NewPostgresCategoryRepo(d.DB.Pool, d.Logger)
	d.TransactionRepo = transaction.NewPostgresTransactionRepo(d.DB.Pool, d.Logger)
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	tokenTTL := 24 * time.Hour
	authService, err := auth.NewService(
		d.Config.Auth.Members,
		d.Config.Auth.JWTSecret,
		d.Config.Auth.SessionSecret,
		tokenTTL,
		d.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}
	d.AuthService = authService

	registry, err := buildProviderRegistry()
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	d.ImportService = importservice.NewImportService(d.ImportRepo, registry, d.Logger)

	classifier, err := buildClassifier(ctx, d.Config, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init classifier: %w", err)
	}
	d.ClassifyService = classify.NewService(d.TransactionRepo, d.CategoryRepo, classifier, d.Logger)

	d.DashboardService = dashboard.NewService(d.TransactionRepo, d.UserRepo, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.AuthHandler = auth.NewHandler(d.AuthService, d.Logger)
	d.DashboardHandler = dashboard.NewHandler(d.DashboardService, d.Logger)
	d.TransactionHandler = transaction.NewHandler(d.TransactionRepo, d.UserRepo, d.CategoryRepo, d.Logger)
	d.ImportHandler = importhandler.NewHandler(d.ImportService, d.UserRepo, d.Logger)
	d.ClassifyHandler = classify.NewHandler(d.ClassifyService, d.UserRepo, d.Logger)

	d.Logger.Info("handlers initialized")
}

// buildProviderRegistry registers every supported statement format.
func buildProviderRegistry() (*provider.Registry, error) {
	providers := []provider.Provider{provider.NewIntesaExcel()}
	for _, code := range provider.BankCodes() {
		p, err := provider.NewCSVBank(code)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return provider.NewRegistry(providers...), nil
}

func buildClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (classify.Classifier, error) {
	if cfg.AI.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, classification disabled")
		return classify.NewDisabledClassifier(), nil
	}
	return classify.NewGeminiClassifier(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
