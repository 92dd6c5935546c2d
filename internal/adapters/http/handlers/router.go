package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/middleware"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/services"
)

type RouterDeps struct {
	Gate         *services.Gate
	Images       *ImageHandler
	Keys         *KeyHandler
	Stats        *StatsHandler
	Health       *HealthHandler
	Requests     middleware.RequestRecorder
	StoreTimeout time.Duration
}

// corsOptions lets browser clients from any origin call the API with their
// key and read the rate limit headers.
var corsOptions = cors.Options{
	AllowOriginFunc:  func(*http.Request, string) bool { return true },
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:   []string{"*"},
	ExposedHeaders:   append([]string{"Retry-After", "X-Request-Id"}, middleware.RateLimitHeaders...),
	AllowCredentials: true,
	MaxAge:           300,
}

// NewRouter registers every route. Image and stats routes go through the
// admission gate with the role each operation declares.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(corsOptions))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.AccessLog)
	r.Use(middleware.NewRequestCounter(deps.Requests, deps.StoreTimeout))

	admit := func(role domain.Role, action string) func(http.Handler) http.Handler {
		return middleware.NewAdmissionMiddleware(deps.Gate, services.Requirement{Role: role, Action: action})
	}

	r.Get("/health", deps.Health.Health)
	r.Get("/favicon.ico", deps.Health.Favicon)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/create-key", deps.Keys.Create)

		r.With(admit(domain.RoleAdmin, "get statistics")).Get("/stats", deps.Stats.Get)

		r.Route("/img", func(r chi.Router) {
			r.With(admit(domain.RoleUser, "")).Get("/search", deps.Images.Search)
			r.With(admit(domain.RoleUser, "")).Get("/random", deps.Images.Random)
			r.With(admit(domain.RoleTeam, "post images")).Post("/", deps.Images.Create)
			// category for GET, image id for PUT/DELETE; chi requires one name per position
			r.With(admit(domain.RoleUser, "")).Get("/{ref}", deps.Images.ByCategory)
			r.With(admit(domain.RoleAdmin, "update images")).Put("/{ref}", deps.Images.Update)
			r.With(admit(domain.RoleAdmin, "delete images")).Delete("/{ref}", deps.Images.Delete)
		})
	})

	return r
}
