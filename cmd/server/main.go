// Command server runs the roomchat WebSocket service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting roomchat server...")

	cfg, err := server.Load()
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}

	store := auth.NewStore()
	for username, password := range cfg.SeedUsers {
		if err := store.Add(username, password); err != nil {
			log.Fatalf("Seeding user store: %v", err)
		}
	}
	authService := auth.NewService(store, cfg.JWTSecret, cfg.AccessTokenTTL)

	registry := server.NewRegistry()
	handlers := server.NewHandlers(registry, authService, authService)
	mux := server.SetupRoutes(handlers)

	httpServer := server.CreateServer(cfg.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("Forcing shutdown: %v", err)
	}
	registry.Shutdown()
}
