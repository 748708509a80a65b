package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/cmd/jira-service/api"
	"github.com/providentiaww/dashboard-tracker/cmd/jira-service/handlers"
	"github.com/providentiaww/dashboard-tracker/internal/config"
	"github.com/providentiaww/dashboard-tracker/internal/logger"
	"github.com/providentiaww/dashboard-tracker/internal/queue"
	"github.com/providentiaww/dashboard-tracker/internal/storage"
)

const ServiceVersion = "v1.0.0"

func main() {
	envPath := flag.String("env", "../../.env", "path to .env file")
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	config.LoadEnv(*envPath)

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		logger.GetLogger().Fatal("failed to load config", zap.Error(err))
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		logger.GetLogger().Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.GetLogger().With(zap.String("service", "jira-service"), zap.String("version", ServiceVersion))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing store is fine as long as the JIRA_* default workspace is set
	baseStore, err := storage.NewCredentialStoreFromEnv(ctx)
	if err != nil {
		log.Warn("no credential store configured, serving the default workspace only", zap.Error(err))
		baseStore = nil
	}
	credStore := storage.WithDefaultWorkspace(baseStore, config.JiraFromEnv())
	defer credStore.Close()

	service := handlers.NewService(credStore, cfg.Timeout(), log,
		api.WithStatusMap(cfg.Workflow.StatusMap),
		api.WithIssueTypeCodes(cfg.Workflow.IssueTypeCodes),
	)

	conn, err := queue.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	server, err := queue.NewServer(conn, cfg.AMQP.RequestQueue, cfg.AMQP.Workers, log)
	if err != nil {
		log.Fatal("failed to start queue server", zap.Error(err))
	}
	defer server.Close()

	log.Info("jira service started", zap.String("queue", cfg.AMQP.RequestQueue), zap.Duration("timeout", cfg.Timeout()))
	if err := server.Serve(ctx, service.HandleRequest); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("queue server stopped", zap.Error(err))
		return
	}
	log.Info("jira service stopped")
}
