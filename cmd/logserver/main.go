package main

import (
	"context"
	"errors"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/infrastructure/grpc/logservice"
	"flash-chat/infrastructure/grpc/server"
	"flash-chat/infrastructure/memory"
	"flash-chat/infrastructure/storage"
	"flash-chat/infrastructure/streams"
	"flash-chat/internal"
	"flash-chat/moderation"
	"flash-chat/runtime/workers"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"

	grpc2 "github.com/mama165/sdk-go/grpc"

	apperrors "flash-chat/errors"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Log server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// backend is a log the server can expose, plus what it takes to check and
// release it.
type backend struct {
	log   contract.ILog
	check internal.HealthCheck
	close func() error
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every deferred cleanup runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.LogServerConfig
	if err := internal.LoadConfig(&config); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	mask, err := config.MaskRune()
	if err != nil {
		return exitConfig, err
	}

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Log backend
	b, err := openBackend(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing log backend...", "backend", config.Backend)
		if err := b.close(); err != nil {
			logger.Error("Log backend close failed", "error", err)
		}
	}()

	remote := b.log
	if len(config.ModerationWords) > 0 {
		filter, err := moderation.NewFilter(config.ModerationWords, mask)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
		}
		remote = moderation.NewLog(remote, filter, logger)
		logger.Info("Moderation enabled", "words", len(config.ModerationWords))
	}

	// 4. Background workers & debug endpoint
	sup := workers.NewSupervisor(logger, workers.RestartPolicy{
		Enabled:     true,
		Interval:    time.Second,
		MaxInterval: 30 * time.Second,
	})
	sup.Add(workers.NewProcessStatsWorker(logger, config.StatsInterval))
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()
	defer func() {
		sup.Stop()
		<-supDone
	}()

	if config.DebugPort > 0 {
		shutdown := internal.StartDebugServer(logger, config.DebugPort, b.check)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	// 5. gRPC Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc2.UnaryLoggingInterceptor(logger)))
	logServer := server.NewLogServer(logger, remote, config.Backend, config.ConnectionBufferSize)
	logservice.RegisterLogServiceServer(s, logServer)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting gRPC server", "address", address, "backend", config.Backend, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 7. Final Cleanup
	// Subscribe streams only end with their clients, so they are cut here
	logger.Info("Shutting down gracefully...")
	s.Stop()
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func openBackend(ctx context.Context, config internal.LogServerConfig, logger *slog.Logger) (backend, error) {
	switch config.Backend {
	case "badger":
		db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return backend{}, fmt.Errorf("database opening failed: %w", err)
		}
		if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
			inspectPort := config.DebugPort + 1
			logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", inspectPort))
			database.StartDebugServer(db, inspectPort, "/inspect", RecordMapper)
		}
		log := storage.NewLog(db, logger)
		return backend{
			log: log,
			check: func(context.Context) error {
				if db.IsClosed() {
					return apperrors.ErrLogClosed
				}
				return nil
			},
			close: func() error {
				return errors.Join(log.Close(), db.Close())
			},
		}, nil
	case "redis":
		log, err := streams.NewRedisLog(ctx, config.RedisURL, logger)
		if err != nil {
			return backend{}, fmt.Errorf("redis connection failed: %w", err)
		}
		return backend{log: log, check: log.Ping, close: log.Close}, nil
	case "memory":
		log := memory.NewLog()
		return backend{log: log, close: log.Close}, nil
	default:
		return backend{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownBackend, config.Backend)
	}
}

func buildBadgerOpts(ctx context.Context, config internal.LogServerConfig, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// RecordMapper shows chat records in the badger inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	fields, err := storage.DecodeFields(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = "RECORD"
	row.Detail = fmt.Sprintf("%v: %v", fields[domain.SenderField], fields[domain.BodyField])
	return row
}
