// mesh hub server - provides the A2A orchestration platform's HTTP/WebSocket
// API and runs its background sweepers (contract awarding, reputation
// recalculation).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/meshhub/hub/internal/a2a"
	"github.com/meshhub/hub/internal/acl"
	"github.com/meshhub/hub/internal/api"
	"github.com/meshhub/hub/internal/config"
	"github.com/meshhub/hub/internal/contract"
	"github.com/meshhub/hub/internal/federation"
	"github.com/meshhub/hub/internal/orchestrator"
	"github.com/meshhub/hub/internal/presence"
	"github.com/meshhub/hub/internal/ratelimit"
	"github.com/meshhub/hub/internal/reputation"
	"github.com/meshhub/hub/internal/store"
	"github.com/meshhub/hub/pkg/database"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Starting mesh hub")
	log.Printf("HTTP Port: %s", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}()

	st := store.New(dbClient.Client)
	limiter := ratelimit.New(redisClient, logger)
	presenceRegistry := presence.New(30*time.Second, logger)
	aclEval := acl.New(st)

	fedClient := federation.NewClient(st, federation.ClientConfig{
		LocalDomain:  cfg.Federation.LocalDomain,
		SharedSecret: cfg.Federation.SharedSecret,
		Timeout:      cfg.Federation.OutboundTimeout,
	}, logger)
	fedBridge := federation.NewBridge(st, aclEval, presenceRegistry, fedClient, federation.BridgeConfig{
		LocalDomain:  cfg.Federation.LocalDomain,
		SharedSecret: cfg.Federation.SharedSecret,
		HMACRequired: cfg.Federation.HMACRequired,
	}, logger)

	router := a2a.New(st, limiter, aclEval, presenceRegistry, fedClient, a2a.Config{
		LocalDomain:  cfg.Federation.LocalDomain,
		APIKeyLimit:  cfg.A2A.APIKeyLimitPerMin,
		APIKeyWindow: cfg.A2A.APIKeyWindow,
		OrgLimit:     cfg.A2A.OrgLimitPerMin,
		OrgWindow:    cfg.A2A.OrgWindow,
	}, logger)

	contractEngine := contract.New(st, presenceRegistry, contract.Config{
		BiddingWindow:      cfg.Contract.BiddingWindow,
		SweepInterval:      cfg.Contract.SweepInterval,
		ValidationPass:     cfg.Contract.ValidationPass,
		MaxExecutionWindow: cfg.Contract.MaxExecutionWindow,
	}, logger)
	contractEngine.Start(ctx)

	reputationEngine := reputation.New(st, cfg.Reputation.RecalcInterval, logger)
	reputationEngine.Start(ctx)

	selector := orchestrator.NewSelector(st)
	orchEngine := orchestrator.NewEngine(orchestrator.NewHeuristicAnalyzer(), selector, &orchestrator.SimulatedExecutor{}, st, logger)

	server := api.NewServer(dbClient, st, presenceRegistry, router, contractEngine, orchEngine, fedBridge, logger)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
}
