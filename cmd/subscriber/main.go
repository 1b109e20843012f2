package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/jz1452/market-exchange-simulator/internal/blotter"
	"github.com/jz1452/market-exchange-simulator/internal/config"
	"github.com/jz1452/market-exchange-simulator/internal/feed"
	"github.com/jz1452/market-exchange-simulator/internal/logging"
	"github.com/jz1452/market-exchange-simulator/internal/netx"
	"github.com/jz1452/market-exchange-simulator/internal/observability"
	"github.com/jz1452/market-exchange-simulator/internal/strategy"
	"github.com/jz1452/market-exchange-simulator/internal/tape"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("subscriber")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting subscriber service",
		zap.String("multicast_addr", cfg.MulticastAddr),
		zap.String("publisher_addr", cfg.PublisherAddr),
		zap.String("blotter_path", cfg.BlotterPath),
		zap.String("tape_brokers", cfg.TapeBrokers),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
	)

	// Trading engine owns its symbol map and ledger
	engine := strategy.NewEngine(logger)

	// Optional trade blotter
	var store *blotter.Store
	if cfg.BlotterPath != "" {
		store, err = blotter.Open(cfg.BlotterPath)
		if err != nil {
			logger.Fatal("failed to open trade blotter", zap.Error(err))
		}
		defer store.Close()
		logger.Info("trade blotter opened", zap.String("path", cfg.BlotterPath))
	}

	// Optional trade tape
	var tapeProducer *tape.Producer
	if cfg.TapeBrokers != "" {
		brokers := strings.Split(cfg.TapeBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		tapeProducer, err = tape.NewProducer(brokers, logger)
		if err != nil {
			logger.Fatal("failed to create trade tape producer", zap.Error(err))
		}
		defer tapeProducer.Close()
	}

	if store != nil || tapeProducer != nil {
		engine.SetFillHandler(func(fill strategy.Fill) {
			ctx := context.Background()
			if store != nil {
				if _, err := store.RecordFill(ctx, fill); err != nil {
					logger.Error("failed to record fill", zap.Error(err))
				}
			}
			if tapeProducer != nil {
				if err := tapeProducer.PublishTrade(ctx, fill); err != nil {
					logger.Error("failed to publish trade", zap.Error(err))
				}
			}
		})
	}

	// Join the multicast group
	conn, err := netx.JoinMulticast(cfg.MulticastAddr)
	if err != nil {
		logger.Fatal("failed to join multicast group", zap.Error(err))
	}
	defer conn.Close()
	logger.Info("joined multicast group", zap.String("addr", cfg.MulticastAddr))

	recoverer := feed.NewTCPRecoverer(cfg.PublisherAddr, logger)
	sub := feed.NewSubscriber(conn, recoverer, logger)

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

	// Signal handler only sets a flag; the report is generated in the main
	// goroutine after the receive loop has observed it.
	var stop atomic.Bool
	var sigNum atomic.Int32
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if s, ok := sig.(syscall.Signal); ok {
			sigNum.Store(int32(s))
		}
		stop.Store(true)
	}()

	runErr := sub.Run(&stop, engine.OnTick)
	if runErr != nil {
		logger.Error("receive loop failed", zap.Error(runErr))
	}

	// Final session report, read-only over engine state
	report := engine.Report()
	for _, open := range report.Open {
		logger.Info("open position",
			zap.String("symbol", open.Symbol),
			zap.Float64("entry_price", open.EntryPrice),
			zap.Float64("last_price", open.LastPrice),
			zap.Float64("unrealized", open.Unrealized),
		)
	}
	logger.Info("session report",
		zap.Float64("realized_pnl", report.Realized),
		zap.Float64("unrealized_pnl", report.Unrealized),
		zap.Float64("total_pnl", report.Total),
		zap.Int("trades", report.Trades),
	)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("subscriber service stopped")
	logger.Sync()

	if sig := sigNum.Load(); sig != 0 {
		os.Exit(int(sig))
	}
}
