package main

import (
	"context"
	"log"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/insightql/insight-engine/pkg/config"
	"github.com/insightql/insight-engine/pkg/database"
	"github.com/insightql/insight-engine/pkg/dbtool"
	"github.com/insightql/insight-engine/pkg/logging"
	"github.com/insightql/insight-engine/pkg/middleware"
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

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	executor := dbtool.NewSafeExecutor(db.Pool, cfg.Query.DefaultRowLimit,
		cfg.Query.StatementTimeoutMs, logger.Named("executor"))
	catalog := dbtool.NewCatalog(db.Pool)
	datasets := dbtool.NewDatasetResolver(db.Pool)
	dispatcher := dbtool.NewDispatcher(executor, catalog, datasets, logger.Named("dispatcher"))

	mux := http.NewServeMux()
	dbtool.NewServer(dispatcher, logger.Named("server")).RegisterRoutes(mux)

	// Same dispatcher, second surface: MCP over streamable HTTP.
	mcpSrv := mcpserver.NewMCPServer("insight-dbtool", cfg.Version,
		mcpserver.WithToolCapabilities(true))
	dbtool.RegisterMCPTools(mcpSrv, dispatcher, logger.Named("mcp"))
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true)))

	handler := middleware.RequestLogger(logger)(mux)

	port := cfg.DBTool.Port
	if port == "" {
		port = "8081"
	}
	addr := cfg.BindAddr + ":" + port
	logger.Info("Starting insight-dbtool",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
