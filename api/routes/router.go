package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/cart"
	creator "github.com/angelmondragon/marketplace-backend/internal/creators"
	products "github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Deps carries what the router needs to mount every endpoint.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Breaker  controllers.BreakerState
	Gatherer prometheus.Gatherer
	Products products.Service
	Creators creator.Service
	Cart     cart.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis, d.Breaker))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsQuery(d.Products, logg))
			r.Get("/recent", controllers.ProductsRecent(d.Products, logg))
			r.Get("/best-selling", controllers.ProductsBestSelling(d.Products, logg))
			r.Get("/search", controllers.ProductsSearch(d.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(d.Products, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser(logg))
				r.Post("/", controllers.ProductCreate(d.Products, logg))
				r.Put("/{productId}/variants/{variantId}/stock", controllers.ProductUpdateVariantStock(d.Products, logg))
				r.Post("/{productId}/archive", controllers.ProductArchive(d.Products, logg))
				r.Post("/{productId}/restore", controllers.ProductRestore(d.Products, logg))
				r.Delete("/{productId}", controllers.ProductDelete(d.Products, logg))
			})
		})

		r.Route("/creators", func(r chi.Router) {
			r.Get("/", controllers.CreatorsList(d.Creators, logg))
			r.Get("/{creatorId}", controllers.CreatorGet(d.Creators, logg))
			r.Get("/{creatorId}/products", controllers.CreatorProducts(d.Products, logg))
			r.With(middleware.RequireUser(logg)).Post("/", controllers.CreatorRegister(d.Creators, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.Cart, logg))
			r.Delete("/", controllers.CartClear(d.Cart, logg))
			r.Post("/items", controllers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(d.Cart, logg))
		})
	})

	return r
}
