package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	// Events serves the map event stream; nil disables /events.
	Events    http.Handler
	StaticDir string
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// The event stream is long-lived and stays outside the request timeout.
	if opts.Events != nil {
		r.Method(http.MethodGet, "/events", opts.Events)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/stations", h.GetStations)
		r.Put("/stations/keyword", h.PutKeyword)
		r.Post("/stations/reload", h.ReloadStations)
		r.Get("/stations/{sno}", h.GetStation)
		r.Get("/suggestions", h.GetSuggestions)
		r.Post("/focus/{sno}", h.PostFocus)
		r.Post("/position", h.PostPosition)
		r.Post("/position/denied", h.PostPositionDenied)
		r.Get("/map", h.GetMap)
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}
