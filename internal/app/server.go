package app

import (
	"net/http"
	"time"

	"amocrm-leads/internal/handlers"
	"amocrm-leads/internal/server"
	"github.com/gorilla/mux"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handler builds the routed HTTP handler
func (app *App) Handler() http.Handler {
	var redisHealth handlers.HealthChecker
	if app.RedisClient != nil {
		redisHealth = app.RedisClient
	}

	h := handlers.New(app.Leads, app.OAuthManager, redisHealth, Version)

	router := mux.NewRouter()
	SetupRoutes(router, h)
	return router
}

// RunServer creates the HTTP server with all handlers configured.
// A report may page through four CRM resources, so the write timeout is a
// multiple of the outbound timeout.
func (app *App) RunServer() *server.Server {
	writeTimeout := 4*app.Config.HTTPTimeout + 10*time.Second
	return server.New(app.Handler(), app.Config.Port, writeTimeout)
}
