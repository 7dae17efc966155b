package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AllowedOrigins feeds CORS. "*" allows any origin.
	AllowedOrigins []string
	// WS serves GET /ws. Nil leaves the route unmounted.
	WS http.Handler
}

// NewRouter wires the HTTP API.
func NewRouter(h *Handler, opts RouterOptions, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(requestMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	if opts.WS != nil {
		r.Handle("/ws", opts.WS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/stats", h.Stats)
		r.Get("/conversations", h.ListConversations)
		r.Get("/messages/{wa_id}", h.ListMessages)
		r.Post("/messages", h.CreateMessage)
		r.Get("/search", h.Search)
		r.Post("/webhook", h.Webhook)
	})

	return r
}
