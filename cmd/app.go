package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/ai/gemini"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/lifecycle"
	"github.com/spigell/rozgar/internal/logger"
	"github.com/spigell/rozgar/internal/matching"
	"github.com/spigell/rozgar/internal/media"
	"github.com/spigell/rozgar/internal/notify"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/secrets"
	"github.com/spigell/rozgar/internal/storage"
	"go.uber.org/zap"
)

// services is everything a command may need, built from one Config.
type services struct {
	config    *Config
	logger    *zap.Logger
	store     storage.Store
	repo      *repository.Repository
	assistant ai.Assistant
	engine    *matching.Engine
	tracker   *lifecycle.Tracker
	publisher notify.Publisher
}

// setup builds the logger and config shared by every command.
func setup() (*Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	return config, logger
}

func newServices(ctx context.Context, config *Config, log *zap.Logger) (*services, error) {
	s := &services{config: config, logger: log}

	store, err := storage.Open(ctx, config.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", config.Storage.Driver, err)
	}
	s.store = store

	repo, err := repository.Open(ctx, store, log.Named("repository"), repository.Options{Origin: config.Matching.Origin})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	s.repo = repo

	if config.Storage.SeedDemo {
		n, err := repo.SeedDemo(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("seeding demo data: %w", err)
		}
		if n > 0 {
			log.Info("seeded demo jobs", zap.Int("count", n))
		}
	}

	s.assistant = newAssistant(ctx, config.AI, log)
	s.engine = matching.NewEngine(repo, s.assistant, log.Named("matching"), config.Matching.DefaultRadius)

	s.publisher = newPublisher(ctx, config.Events, log)
	policy, _ := jobs.ParseTransitionPolicy(config.Applications.TransitionPolicy)
	notifier := notify.NewNotifier(repo, s.publisher, log.Named("notify"))
	s.tracker = lifecycle.NewTracker(repo, notifier, policy, log.Named("lifecycle"))

	return s, nil
}

// newAssistant falls back to ai.Unavailable when no key is configured or the
// client cannot be built. The service stays up either way.
func newAssistant(ctx context.Context, cfg AIConfig, log *zap.Logger) ai.Assistant {
	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		log.Warn("ai is disabled", zap.Error(err))
		return ai.Unavailable{}
	}
	if apiKey == "" {
		log.Warn("ai is disabled",
			zap.String("reason", "no api key"),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file"),
		)
		return ai.Unavailable{}
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		log.Warn("ai is disabled", zap.Error(err))
		return ai.Unavailable{}
	}

	log.Info("ai is enabled", logger.Compact(logger.FieldProvider, generator.Provider(), logger.FieldModel, generator.Model())...)
	return gemini.NewAssistant(generator, log.Named("ai"), cfg.Timeout, cfg.Gemini.MaxLogLength)
}

func newPublisher(ctx context.Context, cfg EventsConfig, log *zap.Logger) notify.Publisher {
	if cfg.URL == "" {
		return notify.Nop{}
	}

	pub, err := notify.DialAMQP(ctx, cfg.URL, cfg.Exchange, log.Named("amqp"))
	if err != nil {
		log.Warn("events are disabled", zap.Error(err))
		return notify.Nop{}
	}
	log.Info("publishing events", zap.String("exchange", cfg.Exchange))
	return pub
}

func newUploader(ctx context.Context, cfg MediaConfig, log *zap.Logger) (*media.Uploader, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	secret, err := secrets.Optional(secrets.Source{
		Name:  "s3 secret key",
		Value: cfg.SecretKey,
		File:  cfg.SecretKeyFile,
	})
	if err != nil {
		return nil, err
	}
	cfg.SecretKey = secret

	return media.NewUploader(ctx, cfg.Config, log.Named("media"))
}

func (s *services) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("closing storage", zap.Error(err))
		}
	}
}
