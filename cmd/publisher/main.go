package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/jz1452/market-exchange-simulator/internal/chaos"
	"github.com/jz1452/market-exchange-simulator/internal/config"
	"github.com/jz1452/market-exchange-simulator/internal/feed"
	"github.com/jz1452/market-exchange-simulator/internal/logging"
	"github.com/jz1452/market-exchange-simulator/internal/observability"
	"github.com/jz1452/market-exchange-simulator/internal/pricegen"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("publisher")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting publisher service",
		zap.String("multicast_addr", cfg.MulticastAddr),
		zap.Int("recovery_port", cfg.RecoveryPort),
		zap.Int64("price_seed", cfg.Seed),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
	)

	// Price process and loss injection
	prices := pricegen.New(cfg.Seed)
	loss := chaos.New(chaos.LoadConfig(), logger)

	// Open sockets and wire the event loop
	pub, err := feed.NewPublisher(cfg, logger, prices, loss)
	if err != nil {
		logger.Fatal("failed to start publisher", zap.Error(err))
	}
	defer pub.Close()

	// Create health checker
	healthChecker := observability.NewHealthChecker(logger)

	// Create gRPC server
	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Start HTTP health server
	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HTTPAddr()); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	healthChecker.SetFeedReady(true)

	// Signal handler only sets the shutdown request; the loop observes it
	// between batches and the report runs in normal execution context.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		pub.Shutdown()
	}()

	runErr := pub.Run()

	// Graceful shutdown
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if runErr != nil {
		logger.Error("publisher loop failed", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("publisher service stopped")
}
