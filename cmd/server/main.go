package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/internal/api"
	"github.com/trananhvu/classpulse/internal/app"
	"github.com/trananhvu/classpulse/internal/gateway"
	"github.com/trananhvu/classpulse/internal/ratelimit"
	"github.com/trananhvu/classpulse/internal/realtime"
	"github.com/trananhvu/classpulse/internal/room"
	"github.com/trananhvu/classpulse/internal/session"
	"github.com/trananhvu/classpulse/internal/sweeper"
	"github.com/trananhvu/classpulse/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("classpulse-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	registry := session.NewRegistry(session.Config{
		CodeLength:        cfg.Session.CodeLength,
		MaxParticipants:   cfg.Session.MaxParticipants,
		MaxRooms:          cfg.Session.MaxRooms,
		HostGracePeriod:   cfg.Session.HostGracePeriod,
		MaxAge:            cfg.Session.MaxAge,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		RoomLimits: room.Limits{
			ContentMaxLen:  cfg.Limits.ContentMaxLen,
			MaxSubmissions: cfg.Limits.MaxSubmissions,
		},
	})

	hub := realtime.NewHub()

	limiter := ratelimit.New(cfg.Limits.RateLimitEvents, cfg.Limits.RateLimitWindow)
	defer limiter.Close()

	gateway.New(registry, hub, limiter, gateway.Config{
		DisplayNameMaxLen: cfg.Limits.DisplayNameMaxLen,
		MinPollOptions:    cfg.Limits.MinPollOptions,
		MaxPollOptions:    cfg.Limits.MaxPollOptions,
	})

	sweep := sweeper.New(registry, sweeper.WithSchedule(cfg.Sweeper.Schedule))
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("start expiry sweeper: %w", err)
	}
	defer func() {
		<-sweep.Stop().Done()
	}()

	router, err := api.NewRouter(cfg, registry, hub)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
