package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/belanjaid/storefront-backend/api/controllers"
	"github.com/belanjaid/storefront-backend/api/middleware"
	authsvc "github.com/belanjaid/storefront-backend/internal/auth"
	cartsvc "github.com/belanjaid/storefront-backend/internal/cart"
	catalogsvc "github.com/belanjaid/storefront-backend/internal/catalog"
	ordersvc "github.com/belanjaid/storefront-backend/internal/orders"
	reviewsvc "github.com/belanjaid/storefront-backend/internal/reviews"
	wishlistsvc "github.com/belanjaid/storefront-backend/internal/wishlist"
	"github.com/belanjaid/storefront-backend/pkg/config"
	"github.com/belanjaid/storefront-backend/pkg/enums"
	"github.com/belanjaid/storefront-backend/pkg/logger"
	"github.com/belanjaid/storefront-backend/pkg/metrics"
	pkgredis "github.com/belanjaid/storefront-backend/pkg/redis"
)

// Dependencies bundles everything the router needs wired in.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    controllers.Pinger
	Redis       *pkgredis.Client
	Idempotency pkgredis.IdempotencyStore // defaults to Redis when unset
	Metrics     *metrics.HTTPMetrics
	Registry    *prometheus.Registry
	Auth        authsvc.Service
	Catalog     catalogsvc.Service
	Cart        cartsvc.Service
	Orders      ordersvc.Service
	Reviews     reviewsvc.Service
	Wishlist    wishlistsvc.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
	)

	// a typed-nil client must not reach the interface-valued middleware
	idemStore := deps.Idempotency
	if idemStore == nil && deps.Redis != nil {
		idemStore = deps.Redis
	}

	healthDeps := map[string]controllers.Pinger{"database": deps.DBPinger}
	if deps.Redis != nil {
		healthDeps["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(idemStore, logg)).Post("/register", controllers.Register(deps.Auth, logg))
		r.Post("/login", controllers.Login(deps.Auth, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(deps.Catalog, logg))
		r.Get("/{productID}", controllers.ProductGet(deps.Catalog, logg))
		r.Get("/{productID}/reviews", controllers.ReviewListByProduct(deps.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Post("/", controllers.ProductCreate(deps.Catalog, logg))
			r.Post("/{productID}/variants", controllers.VariantCreate(deps.Catalog, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Put("/items/{variantID}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{variantID}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/order", func(r chi.Router) {
			// inline so the full route pattern is resolved before the
			// middleware matches it; a subrouter Use sees only /api/v1
			r.With(middleware.Idempotency(idemStore, logg)).Post("/create", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(deps.Orders, logg))
			r.Put("/{orderID}", controllers.OrderUpdate(deps.Orders, logg))
			r.Delete("/{orderID}", controllers.OrderDelete(deps.Orders, logg))
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", controllers.ReviewCreate(deps.Reviews, logg))
			r.Delete("/{reviewID}", controllers.ReviewDelete(deps.Reviews, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(deps.Wishlist, logg))
			r.Post("/", controllers.WishlistAdd(deps.Wishlist, logg))
			r.Delete("/{productID}", controllers.WishlistRemove(deps.Wishlist, logg))
		})
	})

	return r
}
