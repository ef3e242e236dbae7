package app

import (
	"amocrm-leads/internal/handlers"
	"amocrm-leads/internal/middleware"
	"github.com/gorilla/mux"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/leads", h.GetLeads).Methods("GET")
}
