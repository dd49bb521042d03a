package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/botirk38/semanticrouter"
	"github.com/botirk38/semanticrouter/backends"
	"github.com/botirk38/semanticrouter/config"
	"github.com/botirk38/semanticrouter/fallback"
	"github.com/botirk38/semanticrouter/fallback/anthropic"
	"github.com/botirk38/semanticrouter/fallback/gemini"
	"github.com/botirk38/semanticrouter/fallback/openai"
	"github.com/botirk38/semanticrouter/metrics"
	"github.com/botirk38/semanticrouter/options"
	"github.com/botirk38/semanticrouter/providers"
	"github.com/botirk38/semanticrouter/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var vendorEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// newLogger configures a logrus logger from cfg.
func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// buildRouter is the composition root: it turns configuration into a seeded Router.
func buildRouter(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, m metrics.Metrics) (*semanticrouter.Router, error) {
	policy, err := options.ParseCachePolicy(cfg.Router.Policy)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	index, err := buildIndex(ctx, cfg)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("index: %w", err)
	}

	generator, err := buildGenerator(ctx, cfg.Fallback, cfg.APIKey(cfg.Fallback.Provider), logger)
	if err != nil {
		provider.Close()
		_ = index.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}

	opts := []options.Option{
		options.WithProvider(provider),
		options.WithIndex(index),
		options.WithGenerator(generator),
		options.WithThreshold(cfg.Router.Threshold),
		options.WithApology(cfg.Router.Apology),
		options.WithMissingKeyMessage(missingKeyMessage(cfg)),
		options.WithFallbackTimeout(cfg.Fallback.Timeout),
		options.WithCachePolicy(policy),
		options.WithCoalescing(cfg.Router.Coalesce),
		options.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, options.WithMetrics(m))
	}
	if cfg.Seeds != nil {
		opts = append(opts, options.WithSeeds(cfg.Seeds...))
	}

	router, err := semanticrouter.New(ctx, opts...)
	if err != nil {
		provider.Close()
		_ = index.Close()
		return nil, err
	}
	return router, nil
}

func buildProvider(ctx context.Context, cfg *config.Config) (types.EmbeddingProvider, error) {
	kind := types.ProviderType(strings.ToLower(cfg.Embedding.Provider))
	return providers.NewProvider(ctx, providers.Config{
		Type:       kind,
		APIKey:     cfg.APIKey(string(kind)),
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
	})
}

func buildIndex(ctx context.Context, cfg *config.Config) (types.IndexBackend, error) {
	factory := &backends.BackendFactory{}
	return factory.NewBackend(ctx, types.BackendType(strings.ToLower(cfg.Index.Type)), types.BackendConfig{
		ConnectionString: cfg.Index.Redis.Address,
		Username:         cfg.Index.Redis.Username,
		Password:         cfg.Index.Redis.Password,
		Database:         cfg.Index.Redis.DB,
		Prefix:           cfg.Index.Redis.Prefix,
		DSN:              cfg.Index.Postgres.DSN,
		TableName:        cfg.Index.Postgres.Table,
		Dimensions:       cfg.Index.Dimensions,
		Timeout:          cfg.Index.Timeout,
	})
}

// buildGenerator selects the vendor and wraps it in the configured guards.
// "none" yields a generator that is never configured.
func buildGenerator(ctx context.Context, cfg config.FallbackConfig, apiKey string, logger logrus.FieldLogger) (fallback.Generator, error) {
	var gen fallback.Generator

	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		g, err := gemini.New(ctx, gemini.Config{APIKey: apiKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		gen = g
	case "openai":
		gen = openai.New(openai.Config{APIKey: apiKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens})
	case "anthropic":
		gen = anthropic.New(anthropic.Config{APIKey: apiKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens})
	case "none":
		return fallback.GeneratorFunc(func(context.Context, string) fallback.Result {
			return fallback.Fail(fallback.ReasonNotConfigured, fallback.ErrNotConfigured)
		}), nil
	default:
		return nil, fmt.Errorf("unsupported fallback provider %q", cfg.Provider)
	}

	if cfg.Breaker.Enabled {
		gen = fallback.WithBreaker(gen, fallback.BreakerConfig{
			Name:                cfg.Provider,
			Timeout:             cfg.Breaker.OpenTimeout,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			Logger:              logger,
		})
	}
	// limiter outermost
	if cfg.RateLimit.Enabled {
		gen = fallback.WithRateLimit(gen, rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), max(cfg.RateLimit.Burst, 1)))
	}
	return gen, nil
}

// missingKeyMessage names the variable of the configured vendor when the
// default message is in use.
func missingKeyMessage(cfg *config.Config) string {
	msg := cfg.Router.MissingKeyMessage
	if msg != options.DefaultMissingKeyMessage {
		return msg
	}
	if env, ok := vendorEnv[strings.ToLower(cfg.Fallback.Provider)]; ok {
		return fmt.Sprintf("API key not found. Please set the %s environment variable.", env)
	}
	return msg
}
