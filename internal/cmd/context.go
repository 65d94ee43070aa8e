package cmd

import (
	"context"

	"github.com/jmgilman/atlaspack/internal/config"
)

type contextKey string

const (
	configKey    contextKey = "config"
	loaderKey    contextKey = "loader"
	verbosityKey contextKey = "verbosity"
)

// WithConfig adds the config to the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext retrieves the config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil
	}
	return cfg
}

// WithLoader adds the config loader to the context.
func WithLoader(ctx context.Context, loader *config.Loader) context.Context {
	return context.WithValue(ctx, loaderKey, loader)
}

// LoaderFromContext retrieves the config loader from context.
func LoaderFromContext(ctx context.Context) *config.Loader {
	loader, ok := ctx.Value(loaderKey).(*config.Loader)
	if !ok {
		return nil
	}
	return loader
}

// WithVerbosity records the -v count.
func WithVerbosity(ctx context.Context, verbosity int) context.Context {
	return context.WithValue(ctx, verbosityKey, verbosity)
}

// VerbosityFromContext returns the -v count, zero when unset.
func VerbosityFromContext(ctx context.Context) int {
	v, _ := ctx.Value(verbosityKey).(int)
	return v
}
