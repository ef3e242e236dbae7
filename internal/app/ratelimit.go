package app

import (
	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/common/ratelimit"
)

// initializeRateLimiter creates the limiter shared by every outbound CRM call,
// token requests included
func (app *App) initializeRateLimiter() error {
	limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
		RequestsPerSecond: app.Config.RateLimit,
		Enabled:           app.Config.RateLimit > 0,
	})
	if err != nil {
		return err
	}

	app.Limiter = limiter
	if app.Config.RateLimit > 0 {
		app.Logger.Info("Outbound rate limiting: Enabled", logging.Field{Key: "requests_per_second", Value: app.Config.RateLimit})
	} else {
		app.Logger.Info("Outbound rate limiting: Disabled")
	}
	return nil
}
