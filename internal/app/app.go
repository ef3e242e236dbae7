package app

import (
	"context"
	"time"

	"amocrm-leads/internal/amocrm"
	"amocrm-leads/internal/common/cache"
	"amocrm-leads/internal/common/errors"
	commonhttp "amocrm-leads/internal/common/http"
	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/common/ratelimit"
	"amocrm-leads/internal/config"
	"amocrm-leads/internal/leads"
	"amocrm-leads/internal/oauth2"
	"amocrm-leads/internal/redis"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	RedisClient  *redis.Client
	Cache        cache.Cache
	Limiter      ratelimit.Limiter
	TokenStorage oauth2.TokenStorage
	OAuthManager *oauth2.Manager
	CRM          *amocrm.Client
	Leads        *leads.Aggregator
	Logger       logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeRateLimiter(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeCache(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeOAuth(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeCRM(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeCache() error {
	cacheConfig := cache.DefaultConfig()
	if app.Config.CacheBackend == config.CacheBackendRedis {
		cacheConfig.Type = cache.TypeRedis
		cacheConfig.RedisClient = app.RedisClient.Redis()
	}

	c, err := cache.New(cacheConfig)
	if err != nil {
		return errors.ConfigError(err.Error())
	}

	app.Cache = c
	app.Logger.Info("Lookup cache initialized", logging.Field{Key: "backend", Value: string(cacheConfig.Type)})
	return nil
}

func (app *App) initializeOAuth() error {
	switch app.Config.TokenStorage {
	case config.TokenStorageRedis:
		app.TokenStorage = oauth2.NewRedisTokenStorage(app.RedisClient, "")
	default:
		app.TokenStorage = oauth2.NewFileTokenStorage(app.Config.TokenFile)
	}

	manager, err := oauth2.NewManager(oauth2.Config{
		BaseURL:      app.Config.BaseURL,
		ClientID:     app.Config.ClientID,
		ClientSecret: app.Config.ClientSecret,
		RedirectURI:  app.Config.RedirectURI,
		AuthCode:     app.Config.AuthCode,
	}, app.TokenStorage,
		oauth2.WithHTTPClient(commonhttp.NewHTTPClientWithTimeout(app.Config.HTTPTimeout)),
		oauth2.WithLimiter(app.Limiter),
	)
	if err != nil {
		return err
	}

	app.OAuthManager = manager
	app.Logger.Info("OAuth2 manager initialized", logging.Field{Key: "token_storage", Value: app.Config.TokenStorage})
	return nil
}

func (app *App) initializeCRM() error {
	client, err := amocrm.NewClient(amocrm.Config{
		BaseURL:  app.Config.BaseURL,
		MaxPages: app.Config.MaxPages,
	}, app.OAuthManager,
		amocrm.WithHTTPClient(commonhttp.NewHTTPClientWithTimeout(app.Config.HTTPTimeout)),
		amocrm.WithLimiter(app.Limiter),
	)
	if err != nil {
		return err
	}

	location, err := app.Config.Location()
	if err != nil {
		return errors.ConfigError(err.Error())
	}

	app.CRM = client
	app.Leads = leads.NewAggregator(client, app.OAuthManager, app.Cache, leads.Formatter{
		Location:       location,
		CurrencySymbol: app.Config.CurrencySymbol,
	}, logging.GetGlobalLogger())

	app.Logger.Info("CRM client initialized", logging.Field{Key: "base_url", Value: app.Config.BaseURL})
	return nil
}

// Authorize performs the first token exchange at startup so a one-time
// authorization code is used before it expires. Failure is not fatal; the
// report endpoint retries on demand.
func (app *App) Authorize(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, app.Config.HTTPTimeout+5*time.Second)
	defer cancel()

	if err := app.OAuthManager.EnsureAuthorized(ctx); err != nil {
		app.Logger.Warn("Initial authorization failed, will retry on first request", logging.Err(err))
		return
	}
	app.Logger.Info("CRM authorization ready")
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
