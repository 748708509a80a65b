package main

import (
	"context"
	"flag"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/cmd/mcp-stdio/tools"
	"github.com/providentiaww/dashboard-tracker/internal/config"
	"github.com/providentiaww/dashboard-tracker/internal/logger"
	"github.com/providentiaww/dashboard-tracker/internal/models"
	"github.com/providentiaww/dashboard-tracker/internal/queue"
)

func main() {
	envPath := flag.String("env", "../../.env", "path to .env file")
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	sseAddr := flag.String("sse", "", "serve MCP over SSE on this address instead of stdio")
	flag.Parse()

	config.LoadEnv(*envPath)

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		logger.GetLogger().Fatal("failed to load config", zap.Error(err))
	}
	// stdout carries the MCP protocol; the logger writes to stderr
	if err := logger.Init(cfg.LogLevel); err != nil {
		logger.GetLogger().Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.GetLogger().With(zap.String("service", "mcp-stdio"))

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

	s := server.NewMCPServer("dashboard-tracker", "1.0.0")
	tools.Register(s, jiraCaller(rpc, cfg.AMQP.RequestQueue), log)

	if *sseAddr != "" {
		log.Info("serving MCP over SSE", zap.String("addr", *sseAddr))
		sse := server.NewSSEServer(s, server.WithBaseURL(baseURL(*sseAddr)))
		if err := sse.Start(*sseAddr); err != nil {
			log.Error("mcp server stopped", zap.Error(err))
		}
		return
	}

	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", zap.Error(err))
	}
}

// baseURL turns a listen address like ":8081" into the URL clients are told
// to post messages to
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func jiraCaller(rpc *queue.Client, requestQueue string) tools.JiraCaller {
	return func(ctx context.Context, req models.JiraRequest) (*models.JiraResponse, error) {
		var response models.JiraResponse
		if err := rpc.CallJSON(ctx, requestQueue, req, &response); err != nil {
			return nil, err
		}
		return &response, nil
	}
}
