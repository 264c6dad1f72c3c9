package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/trackfit/backend/internal/common/constants"
	"github.com/trackfit/backend/internal/common/logger"
)

type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

func DefaultConfig(port string) Config {
	return Config{
		Addr:              ":" + port,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		ReadTimeout:       constants.ServerReadTimeout,
		WriteTimeout:      constants.ServerWriteTimeout,
		IdleTimeout:       constants.ServerIdleTimeout,
	}
}

func New(cfg Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ShutdownHook runs during the drain period, before in-flight requests
// are waited on.
type ShutdownHook func(ctx context.Context) error

// Run serves until SIGINT or SIGTERM, then drains and shuts down.
func Run(server *http.Server, log *logger.Logger, name string, hooks ...ShutdownHook) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("%s service listening on %s", name, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s service failed: %v", name, err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down %s service", name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, constants.DrainTimeout)
	defer drainCancel()

	server.SetKeepAlivesEnabled(false)
	for i, hook := range hooks {
		if err := hook(drainCtx); err != nil {
			log.Errorf("%s service: shutdown hook %d failed: %v", name, i, err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service forced to shut down: %v", name, err)
		return
	}
	log.Infof("%s service stopped", name)
}
