package service

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/danmuck/edgetrack/internal/channel"
	"github.com/danmuck/edgetrack/internal/config"
	"github.com/danmuck/edgetrack/internal/server"
	"github.com/danmuck/edgetrack/internal/store"
	"github.com/danmuck/edgetrack/internal/target"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Service owns the registry and the components that run beside it.
type Service struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    store.Store
	queue    *channel.Queue
	registry *target.Registry
	admin    *server.Server
}

// New builds every component from cfg and declares configured targets.
func New(cfg config.Config, logger zerolog.Logger) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	flags, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	sink, err := buildSink(cfg.Channel, logger)
	if err != nil {
		_ = flags.Close()
		return nil, err
	}

	queue := channel.NewQueue(cfg.Channel.Queue, sink, logger)
	limits := cfg.Limits
	registry := target.NewRegistry(target.Options{
		Channel: queue,
		Store:   flags,
		Limits:  &limits,
		Logger:  &logger,
	})
	if err := DeclareTargets(registry, cfg.Targets); err != nil {
		_ = registry.Close()
		return nil, err
	}

	admin := server.New(server.Options{
		Name:        cfg.Name,
		Addr:        cfg.Admin.Addr,
		CorsOrigins: cfg.Admin.CorsOrigins,
		Token:       cfg.Admin.Token,
		QueueStats:  queue.Stats,
	}, registry, logger)

	return &Service{
		cfg:      cfg,
		logger:   logger.With().Str("component", "service").Logger(),
		store:    flags,
		queue:    queue,
		registry: registry,
		admin:    admin,
	}, nil
}

func (s *Service) Registry() *target.Registry {
	return s.registry
}

func (s *Service) Queue() *channel.Queue {
	return s.queue
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve supervises the queue and admin API until ctx is done, then closes the registry.
func (s *Service) Serve(ctx context.Context) error {
	sup := suture.New(s.cfg.Name, suture.Spec{
		EventHook: func(e suture.Event) {
			s.logger.Warn().Str("event", e.String()).Msg("supervisor")
		},
	})
	sup.Add(s.queue)
	sup.Add(s.admin)

	s.logger.Info().
		Str("name", s.cfg.Name).
		Int("targets", s.registry.Len()).
		Str("sink", s.cfg.Channel.Sink).
		Msg("service starting")
	err := sup.Serve(ctx)
	if cerr := s.registry.Close(); cerr != nil {
		s.logger.Warn().Err(cerr).Msg("close flag store")
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Info().Msg("service stopped")
	return nil
}

// DeclareTargets creates configured targets parents first and applies their
// enabled overrides and properties.
func DeclareTargets(registry *target.Registry, targets []config.TargetConfig) error {
	ordered, err := config.OrderTargets(targets)
	if err != nil {
		return err
	}
	for _, tc := range ordered {
		var parent *target.Target
		if tc.Parent != "" {
			p, ok := registry.Lookup(tc.Parent)
			if !ok {
				return fmt.Errorf("declare %q: %w: parent %q", tc.Token, target.ErrInvalidHierarchy, tc.Parent)
			}
			parent = p
		}
		t, err := registry.GetOrCreate(tc.Token, parent)
		if err != nil {
			return fmt.Errorf("declare %q: %w", tc.Token, err)
		}
		if tc.Enabled != nil {
			if err := t.SetEnabled(*tc.Enabled); err != nil {
				return fmt.Errorf("declare %q: %w", tc.Token, err)
			}
		}
		for name, value := range tc.Properties {
			if err := t.SetProperty(name, value); err != nil {
				return fmt.Errorf("declare %q: %w", tc.Token, err)
			}
		}
	}
	return nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Path == "" {
		return store.NewMemory(), nil
	}
	return store.OpenLevelDB(cfg.Path)
}

func buildSink(cfg config.ChannelConfig, logger zerolog.Logger) (channel.Sink, error) {
	switch cfg.Sink {
	case config.SinkHTTP:
		return channel.NewHTTPSink(cfg.Endpoint, cfg.APIKey, cfg.Timeout)
	case config.SinkLog, "":
		return channel.LogSink{Logger: logger.With().Str("component", "channel.sink").Logger()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown channel.sink %q", config.ErrInvalidConfig, cfg.Sink)
	}
}
