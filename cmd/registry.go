package cmd

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"connkit/internal/config"
	"connkit/internal/content"
	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/loader"
	"connkit/internal/logger"
	"connkit/internal/plugin"
	"connkit/internal/plugin/builtin"
	"connkit/internal/service"
)

// newExecutor builds the executor shared by every connector from the
// http settings.
func newExecutor(c *config.Config, log *zap.Logger) *engine.Executor {
	e := engine.NewExecutor(&http.Client{}, nil, log)
	e.Timeout = c.HTTP.Timeout
	e.MaxRetries = c.HTTP.MaxRetries
	if c.HTTP.RateLimit > 0 {
		burst := c.HTTP.Burst
		if burst < 1 {
			burst = 1
		}
		e.Limiter = rate.NewLimiter(rate.Limit(c.HTTP.RateLimit), burst)
	}
	return e
}

func formsSource(path string) func(context.Context) ([]loader.Form, error) {
	if path == "" {
		return nil
	}
	return func(context.Context) ([]loader.Form, error) {
		return loader.LoadForms(path)
	}
}

// defaultRegistry registers the builtin connectors and the external plugins
// found in the plugins directory.
func defaultRegistry(ctx context.Context, c *config.Config, executor *engine.Executor, log *zap.Logger) (*plugin.Registry, error) {
	store, err := content.NewStore(c.ContentDir)
	if err != nil {
		return nil, err
	}
	log.Debug("content store ready", zap.String("dir", store.Root()))

	r := plugin.NewRegistry()
	err = builtin.Register(r, builtin.Deps{
		Executor:      executor,
		Content:       store,
		Forms:         formsSource(c.FormsFile),
		DriveMaxPages: c.Drive.MaxPages,
	})
	if err != nil {
		return nil, err
	}

	plugins, err := plugin.LoadExternalPlugins(ctx, c.PluginsDir, executor, log)
	if err != nil {
		return nil, fmt.Errorf("loading plugins: %w", err)
	}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			log.Warn("skipping plugin", zap.String("connector", p.Info().Ref()), zap.Error(err))
		}
	}
	return r, nil
}

// sensitiveKeys returns the encrypted connection keys of a system.
func sensitiveKeys(ctx context.Context, r *plugin.Registry) func(string) []string {
	return func(system string) []string {
		sys, ok := r.System(system)
		if !ok {
			return nil
		}
		sc, err := sys.ConnectionSchema(ctx, nil)
		if sc == nil || err != nil {
			return nil
		}
		return sc.SensitiveKeys()
	}
}

// connectionStore loads the connection files and resolves their secrets.
func connectionStore(ctx context.Context, c *config.Config, r *plugin.Registry) (*credential.Store, map[string]*loader.Connection, error) {
	secrets := map[string]string{}
	if c.SecretsFile != "" {
		var err error
		if secrets, err = credential.LoadDotEnv(c.SecretsFile); err != nil {
			return nil, nil, err
		}
	}
	conns, err := loader.LoadConnections(c.ConnectionsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading connections: %w", err)
	}
	store, err := loader.Store(conns, secrets, sensitiveKeys(ctx, r))
	if err != nil {
		return nil, nil, err
	}
	return store, conns, nil
}

// newService wires the executor, the registry, the connections and the
// OAuth refresher from cfg.
func newService(ctx context.Context) (*service.Service, error) {
	log := logger.Get()
	executor := newExecutor(cfg, log)

	r, err := defaultRegistry(ctx, cfg, executor, log)
	if err != nil {
		return nil, err
	}
	store, _, err := connectionStore(ctx, cfg, r)
	if err != nil {
		return nil, err
	}

	refresher := credential.NewOAuthRefresher(store, log)
	for _, sys := range r.Systems() {
		if sys.OAuth != nil {
			refresher.Register(sys.Name, *sys.OAuth)
		}
	}
	executor.Refresher = refresher

	return service.New(r, store), nil
}
