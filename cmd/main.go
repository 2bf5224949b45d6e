package main

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/infrastructure/http"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (store teardown included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Store (BadgerDB, memory-resident: the directory and the log live
	// exactly as long as the process)
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("store opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing store...")
		_ = db.Close()
	}()

	// 3. Core: repositories, registry, engine
	identities := repositories.NewIdentityRepository(db)
	messages := repositories.NewMessageLog(db, log)
	registry := runtime.NewRegistry()
	engine := runtime.NewEngine(log, identities, messages, registry)

	authService := services.NewAuthService(engine)
	relayService := services.NewRelayService(engine)
	presenceService := services.NewPresenceService(engine)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers under supervision
	healthWorker := workers.NewHealthMonitoringWorker(log, config.MetricInterval)
	sup := workers.NewSupervisor(log)
	sup.Add(healthWorker)
	go sup.Run(ctx)

	if strings.EqualFold(config.LogLevel, "DEBUG") {
		internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.DefaultMapper, func() map[string]any {
			health := engine.Health()
			return map[string]any{
				"users":       health.UsersCount,
				"connections": health.Connections,
			}
		})
		log.Debug("Store inspector up", "port", config.DebugPort)
	}

	// 6. HTTP server: stateless routes plus the WebSocket gateway, both on
	// the same listener and the same engine
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	relayHandler := http.NewRelayHandler(log, authService, relayService, healthWorker)
	gateway := ws.NewGateway(log, authService, relayService, presenceService, config.ConnectionBufferSize)
	server := http.NewServer(log, address, relayHandler, gateway)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.Start(); err != nil && err != stdhttp.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly on port " + strconv.Itoa(config.Port))

	return nil
}
