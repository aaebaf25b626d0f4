package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/database"
	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/handlers"
	"github.com/insightql/insight-engine/pkg/llm"
	"github.com/insightql/insight-engine/pkg/logging"
	"github.com/insightql/insight-engine/pkg/middleware"
	"github.com/insightql/insight-engine/pkg/repositories"
	"github.com/insightql/insight-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("default_provider", cfg.LLM.DefaultProvider),
		zap.String("database", cfg.Database.Database))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	toolClient, err := dbtool.NewClient(cfg.DBTool, logger.Named("dbtool"))
	if err != nil {
		logger.Fatal("Failed to create dbtool client", zap.Error(err))
	}
	logger.Info("dbtool client ready", zap.String("endpoint", toolClient.Endpoint()))

	pricing, err := llm.LoadPricingTable()
	if err != nil {
		logger.Fatal("Failed to load pricing table", zap.Error(err))
	}
	factory := llm.NewFactory(&cfg.LLM, logger.Named("llm"))
	gateway := llm.NewGateway(factory, pricing, logger.Named("llm"))

	datasetRepo := repositories.NewDatasetRepository(db)
	queryLogRepo := repositories.NewQueryLogRepository(db)

	schemaSvc := services.NewSchemaService(datasetRepo, toolClient, logger.Named("schema"))
	agentSvc := services.NewAgentService(schemaSvc, gateway, toolClient, queryLogRepo, cfg.Query, logger.Named("agent"))

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, toolClient, logger).RegisterRoutes(mux)
	handlers.NewAgentHandler(agentSvc, logger.Named("handlers")).RegisterRoutes(mux)
	handlers.NewHistoryHandler(queryLogRepo, logger.Named("handlers")).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting insight-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
