// Package server wires the stores, auth, rules and resource services into
// the HTTP front of the practice server.
package server

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sipico/practice-server/internal/admin"
	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/config"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/resource"
	"github.com/sipico/practice-server/internal/rules"
	"github.com/sipico/practice-server/internal/seed"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

// Service names, matched against the first path token.
const (
	ServiceData      = "data"
	ServiceUsers     = "users"
	ServiceJSONStore = "jsonstore"
	ServiceUtil      = "util"
)

// App holds the state shared by every request.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Storage   *storage.Store
	Protected *storage.Store
	Auth      *auth.Service
	Rules     *rules.Evaluator
	Flags     *service.Flags
	JSONStore *resource.JSONStore

	services map[string]*service.Service
	admin    *admin.Handler
	delay    func() time.Duration
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	logLevel *slog.LevelVar
	reg      prometheus.Registerer
	seed     *seed.Data
	store    []storage.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogLevel sets the level adjusted by the log level API.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(o *options) { o.logLevel = v }
}

// WithRegisterer registers the store record gauges with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithSeed uses d instead of loading seed data from the configured sources.
func WithSeed(d *seed.Data) Option {
	return func(o *options) { o.seed = d }
}

// WithStoreOptions passes options to both stores.
func WithStoreOptions(opts ...storage.Option) Option {
	return func(o *options) { o.store = append(o.store, opts...) }
}

// New builds the application state from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	data := o.seed
	if data == nil {
		var err error
		data, err = seed.Load(seed.Sources{
			CollectionsDir: cfg.SeedDir,
			ProtectedDir:   cfg.ProtectedSeedDir,
			RulesFile:      cfg.RulesFile,
			JSONStoreDir:   cfg.JSONStoreDir,
		})
		if err != nil {
			return nil, fmt.Errorf("load seed data: %w", err)
		}
	}

	set, err := rules.Compile(data.Rules)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    o.logger,
		Storage:   storage.New(data.Collections, o.store...),
		Protected: storage.New(data.Protected, o.store...),
		Flags:     service.NewFlags(map[string]any{service.FlagThrottle: cfg.Throttle}),
		JSONStore: resource.NewJSONStore(data.Documents),
		delay:     throttleDelay,
	}
	a.Auth = auth.NewService(a.Protected,
		auth.WithIdentity(cfg.IdentityField),
		auth.WithHasher(hasher),
		auth.WithLogger(o.logger),
	)
	a.Rules = rules.New(set, a.Storage, o.logger)

	a.services = map[string]*service.Service{
		ServiceData:      resource.Data(),
		ServiceUsers:     resource.Users(),
		ServiceJSONStore: a.JSONStore.Service(),
		ServiceUtil:      resource.Util(),
	}

	var adminOpts []admin.Option
	if cfg.DevMode {
		adminOpts = append(adminOpts, admin.WithDevMode(cfg.AdminDir))
	}
	a.admin = admin.NewHandler(a.Storage, o.logLevel, o.logger, adminOpts...)

	if o.reg != nil {
		err := metrics.RegisterStores(o.reg, map[string]metrics.StatsSource{
			"public":    a.Storage,
			"protected": a.Protected,
		})
		if err != nil {
			return nil, err
		}
	}

	o.logger.Info("practice server state ready",
		"collections", len(a.Storage.Collections()),
		"services", len(a.services),
		"identity", a.Auth.Identity(),
		"dev_mode", cfg.DevMode,
	)
	return a, nil
}

// Services returns the sorted names of the mounted services.
func (a *App) Services() []string {
	return slices.Sorted(maps.Keys(a.services))
}
