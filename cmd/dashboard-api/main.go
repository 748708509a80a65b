package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/cmd/dashboard-api/handlers"
	"github.com/providentiaww/dashboard-tracker/cmd/jira-service/api"
	"github.com/providentiaww/dashboard-tracker/internal/config"
	"github.com/providentiaww/dashboard-tracker/internal/invite"
	"github.com/providentiaww/dashboard-tracker/internal/keystore"
	"github.com/providentiaww/dashboard-tracker/internal/logger"
	"github.com/providentiaww/dashboard-tracker/internal/models"
	"github.com/providentiaww/dashboard-tracker/internal/queue"
	"github.com/providentiaww/dashboard-tracker/internal/storage"
)

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
	log := logger.GetLogger().With(zap.String("service", "dashboard-api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credStore, err := storage.NewCredentialStoreFromEnv(ctx)
	if err != nil {
		log.Fatal("failed to initialize credential store", zap.Error(err))
	}
	defer credStore.Close()

	inviteStore, err := keystore.NewFromEnv(ctx, "dashboard:")
	if err != nil {
		log.Fatal("failed to initialize invitation store", zap.Error(err))
	}
	defer inviteStore.Close()

	invitations, err := invite.NewService(inviteStore, os.Getenv("INVITE_SIGNING_SECRET"), cfg.InviteTTL())
	if err != nil {
		log.Fatal("failed to initialize invitations", zap.Error(err))
	}

	conn, err := queue.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	rpc, err := queue.NewClient(conn, cfg.Timeout()*2)
	if err != nil {
		log.Fatal("failed to create rpc client", zap.Error(err))
	}
	defer rpc.Close()

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Deps{
		Jira:        handlers.NewJiraHandler(jiraCaller(rpc, cfg.AMQP.RequestQueue)),
		Workspaces:  handlers.NewWorkspaceHandler(credStore, connectionTester(cfg.Timeout())),
		Invitations: handlers.NewInvitationHandler(invitations),
		Ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return credStore.Ping(pingCtx)
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("dashboard api listening", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped", zap.Error(err))
	}
}

func jiraCaller(rpc *queue.Client, requestQueue string) handlers.JiraCaller {
	return func(ctx context.Context, req models.JiraRequest) (*models.JiraResponse, error) {
		var response models.JiraResponse
		if err := rpc.CallJSON(ctx, requestQueue, req, &response); err != nil {
			return nil, err
		}
		return &response, nil
	}
}

func connectionTester(timeout time.Duration) handlers.ConnectionTester {
	return func(ctx context.Context, creds models.WorkspaceCredentials) bool {
		client := api.NewClient(api.WorkspaceCredentials{
			Site:  creds.Site,
			Email: creds.Email,
			Token: creds.Token,
		}, timeout)
		return client.TestConnection(ctx)
	}
}
