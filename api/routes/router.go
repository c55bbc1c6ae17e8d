package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julienvidal/bistro-backoffice/api/controllers"
	"github.com/julienvidal/bistro-backoffice/api/middleware"
	"github.com/julienvidal/bistro-backoffice/internal/aibridge"
	"github.com/julienvidal/bistro-backoffice/internal/cashback"
	"github.com/julienvidal/bistro-backoffice/internal/engine"
	"github.com/julienvidal/bistro-backoffice/internal/orders"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/internal/settings"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	promotionsService promotions.Service,
	engineService engine.Service,
	ordersService orders.Service,
	cashbackService cashback.Service,
	settingsProvider settings.Provider,
	bridgeService aibridge.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", controllers.PromotionList(promotionsService, logg))
			r.Post("/", controllers.PromotionCreate(promotionsService, logg))
			r.Post("/preview", controllers.PromotionPreview(engineService, logg))
			r.Get("/{id}", controllers.PromotionGet(promotionsService, logg))
			r.Patch("/{id}", controllers.PromotionUpdate(promotionsService, logg))
			r.Post("/{id}/status", controllers.PromotionSetStatus(promotionsService, logg))
			r.Delete("/{id}", controllers.PromotionDelete(promotionsService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersService, logg))
			r.Get("/{id}", controllers.OrderGet(ordersService, logg))
			r.Post("/{id}/transition", controllers.OrderTransition(ordersService, logg))
			r.Post("/{id}/payment", controllers.OrderPayment(ordersService, logg))
			r.Post("/{id}/compensate", controllers.OrderCompensate(ordersService, logg))
		})

		r.Get("/customers/{id}/cashback", controllers.CashbackBalance(cashbackService, logg))

		r.Route("/cashback", func(r chi.Router) {
			r.Post("/preview", controllers.CashbackPreview(cashbackService, logg))
			r.Get("/settings", controllers.CashbackSettingsGet(settingsProvider, logg))
			r.Put("/settings", controllers.CashbackSettingsUpdate(settingsProvider, logg))
		})

		r.Post("/ai/suggestions", controllers.SuggestionAccept(bridgeService, logg))
	})

	return r
}
