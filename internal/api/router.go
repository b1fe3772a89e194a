package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/receptly/chat-widget/internal/api/handler"
	customMiddleware "github.com/receptly/chat-widget/internal/api/middleware"
	"github.com/receptly/chat-widget/internal/config"
	"github.com/receptly/chat-widget/internal/widget"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, registry *widget.Registry) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// CORS: the widget is embedded on customer sites we do not control
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	widgetHandler := handler.NewWidgetHandler(registry)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)

		r.Route("/widget", func(r chi.Router) {
			r.Post("/init", widgetHandler.Init)

			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/state", widgetHandler.State)
				r.Post("/open", widgetHandler.Open)
				r.Post("/close", widgetHandler.Close)
				r.Post("/message", widgetHandler.Message)
				r.Post("/services/toggle", widgetHandler.ToggleService)
				r.Post("/picker/date", widgetHandler.SelectDate)
				r.Post("/picker/slot", widgetHandler.SelectSlot)
				r.Post("/contact", widgetHandler.ContactField)
				r.Post("/submit", widgetHandler.Submit)
				r.Post("/reset", widgetHandler.Reset)
			})
		})
	})

	return r
}
