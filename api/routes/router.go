package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koseken/game-trading/api/controllers"
	"github.com/koseken/game-trading/api/middleware"
	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/metrics"
	"github.com/koseken/game-trading/pkg/redis"
)

// RouterParams carries everything the HTTP surface is built from. Nil
// services answer 500 on their routes; a nil Redis client disables rate
// limiting and idempotent replay.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	Users        controllers.UserService
	Admins       middleware.AdminChecker
	Listings     controllers.ListingService
	Transactions controllers.TransactionService
	Messages     controllers.MessageService
	Reviews      controllers.ReviewService
	Admin        controllers.AdminService
	Stream       controllers.StreamServer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	var cache redis.Pinger
	if p.Redis != nil {
		cache = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, cache))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public/v1", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(p.Listings, logg))
		r.Get("/listings", controllers.ListingBrowse(p.Listings, logg))
		r.Get("/listings/{listingID}", controllers.ListingDetail(p.Listings, logg))
		r.Get("/users/{userID}", controllers.UserProfile(p.Users, logg))
		r.Get("/users/{userID}/reviews", controllers.UserReviews(p.Reviews, logg))
	})

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.WriteWindow, cfg.RateLimit.WriteLimit)
	messagePolicy := middleware.NewRateLimitPolicy("messages", cfg.RateLimit.MessageWindow, cfg.RateLimit.MessageLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if p.Redis != nil {
			r.Use(middleware.RateLimit(writePolicy, p.Redis, logg))
			r.Use(middleware.Idempotency(p.Redis, logg))
		}

		r.Get("/users/me", controllers.UserMe(p.Users, logg))
		r.Patch("/users/me", controllers.UserUpdateMe(p.Users, logg))

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", controllers.ListingCreate(p.Listings, logg))
			r.Get("/mine", controllers.ListingMine(p.Listings, logg))
			r.Patch("/{listingID}", controllers.ListingUpdate(p.Listings, logg))
			r.Delete("/{listingID}", controllers.ListingDelete(p.Listings, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", controllers.TransactionCreate(p.Transactions, logg))
			r.Get("/", controllers.TransactionList(p.Transactions, logg))
			r.Route("/{transactionID}", func(r chi.Router) {
				r.Get("/", controllers.TransactionGet(p.Transactions, logg))
				r.Put("/complete", controllers.TransactionComplete(p.Transactions, logg))
				r.Put("/cancel", controllers.TransactionCancel(p.Transactions, logg))
				r.Post("/read", controllers.TransactionMarkRead(p.Transactions, logg))
				r.Get("/messages", controllers.MessageList(p.Messages, logg))
				r.Get("/stream", controllers.TransactionStream(p.Transactions, p.Stream, logg))

				send := controllers.MessageSend(p.Messages, logg)
				if p.Redis != nil {
					r.With(middleware.RateLimit(messagePolicy, p.Redis, logg)).Post("/messages", send)
				} else {
					r.Post("/messages", send)
				}
			})
		})

		r.Post("/reviews", controllers.ReviewSubmit(p.Reviews, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(p.Admins, logg))

		r.Get("/stats", controllers.AdminStats(p.Admin, logg))
		r.Get("/users", controllers.AdminListUsers(p.Admin, logg))
		r.Patch("/users/{userID}", controllers.AdminSetUserRole(p.Admin, logg))
		r.Get("/listings", controllers.AdminListListings(p.Admin, logg))
		r.Delete("/listings/{listingID}", controllers.AdminDeleteListing(p.Admin, logg))
		r.Get("/transactions", controllers.AdminListTransactions(p.Admin, logg))
		r.Put("/transactions/{transactionID}/cancel", controllers.AdminCancelTransaction(p.Admin, logg))
	})

	return r
}
