package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

const shutdownTimeout = 5 * time.Second

// Server - the HTTP API of one player.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

func New(logger *slog.Logger, port string, party entity.Party, games gameUseCase) *Server {
	handlers := NewHandlers(logger, games)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", NewPingHandler(party).PingHandler)
	mux.HandleFunc("POST /games", handlers.NewGame)
	mux.HandleFunc("GET /games/{name}", handlers.Status)
	mux.HandleFunc("POST /games/{name}/setup", handlers.Setup)
	mux.HandleFunc("POST /games/{name}/turns", handlers.PlayTurn)
	mux.HandleFunc("GET /games/{name}/history", handlers.History)

	return &Server{
		logger: logger.With("component", "rest"),
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Handler - the routed handler, exposed for tests.
func (that *Server) Handler() http.Handler {
	return that.srv.Handler
}

// Start - serves until ctx is done, then shuts the server down.
func (that *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- that.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := that.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}
