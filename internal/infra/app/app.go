// Package app assembles the client: configuration, logging, stores, the
// broadcast peer, the request engine, and the session coordinator.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/api"
	"github.com/metrolabs/equiptrack/internal/broadcast"
	"github.com/metrolabs/equiptrack/internal/core/port"
	"github.com/metrolabs/equiptrack/internal/httpclient"
	"github.com/metrolabs/equiptrack/internal/infra/config"
	"github.com/metrolabs/equiptrack/internal/infra/logger"
	redisinfra "github.com/metrolabs/equiptrack/internal/infra/redis"
	"github.com/metrolabs/equiptrack/internal/infra/telemetry"
	"github.com/metrolabs/equiptrack/internal/session"
	"github.com/metrolabs/equiptrack/internal/term"
	"github.com/metrolabs/equiptrack/internal/usecase"
)

// Application is one running client instance. Each instance gets its own
// tab identity, its own primary session store, and a subscription on the
// shared broadcast channel.
type Application struct {
	TabID       string
	Coordinator *usecase.Coordinator
	API         *api.API
	Store       *session.Store

	cfg    *config.AppConfig
	logger *zap.Logger
	peer   *broadcast.Peer
	bus    port.Bus
	redis  *redisinfra.Client
}

// Options adjusts construction for the host program.
type Options struct {
	// Input and Output carry the interactive prompt. Defaults to stdin
	// and stdout.
	Input  io.Reader
	Output io.Writer
	// Registry receives the client metrics. Nil means a private registry.
	Registry prometheus.Registerer
}

// New wires a full client from configuration.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*Application, error) {
	log, err := logger.NewWithFile(cfg.App.Env, logger.FileSettings{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	tabID := uuid.NewString()

	legacy := session.NewLegacyStore(afero.NewOsFs(), cfg.Storage.LegacyCredentialsPath, log)
	store := session.NewStore(tabID, legacy, log)

	var (
		bus         port.Bus
		redisClient *redisinfra.Client
	)
	switch cfg.Broadcast.Backend {
	case "redis":
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		bus = broadcast.NewRedisBus(redisClient.Client(), cfg.Broadcast.Channel, log)
	default:
		bus = broadcast.NewLocalBus()
	}

	peer := broadcast.NewPeer(tabID, bus, store, log).
		WithCollectWindow(cfg.Broadcast.CollectWindow)
	if err := peer.Start(ctx); err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("start broadcast peer: %w", err)
	}

	metrics := telemetry.NewMetrics(opts.Registry)
	client := httpclient.New(httpclient.Config{
		BaseURL:                cfg.API.BaseURL,
		Timeout:                cfg.API.Timeout,
		MaxAttempts:            cfg.API.MaxAttempts,
		RetryBaseDelay:         cfg.API.RetryBaseDelay,
		UnauthorizedRetryDelay: cfg.API.UnauthorizedRetryDelay,
		LoginPath:              cfg.API.LoginPath,
	}, store,
		httpclient.WithLogger(log),
		httpclient.WithMetrics(metrics),
	)

	apiSet := api.New(client)

	coordinator := usecase.NewCoordinator(
		tabID,
		store,
		client,
		peer,
		term.NewPrompt(opts.Input, opts.Output),
		term.NewNotifier(opts.Output),
		log,
	).
		WithValidator(apiSet.Auth).
		WithRedirectDelay(cfg.Broadcast.RedirectDelay)

	log.Info("client initialized",
		zap.String("tab_id", tabID),
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("broadcast_backend", cfg.Broadcast.Backend),
	)

	return &Application{
		TabID:       tabID,
		Coordinator: coordinator,
		API:         apiSet,
		Store:       store,
		cfg:         cfg,
		logger:      log,
		peer:        peer,
		bus:         bus,
		redis:       redisClient,
	}, nil
}

// Logger exposes the application logger.
func (a *Application) Logger() *zap.Logger { return a.logger }

// Close releases the broadcast subscription and backend connections.
func (a *Application) Close() error {
	defer func() {
		_ = a.logger.Sync()
	}()

	a.peer.Close()
	if err := a.bus.Close(); err != nil {
		a.logger.Warn("close broadcast bus", zap.Error(err))
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
