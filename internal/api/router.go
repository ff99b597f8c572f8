package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/api/handler"
	"github.com/gashop/shop-ledger/internal/api/middleware"
	"github.com/gashop/shop-ledger/internal/api/spec"
	"github.com/gashop/shop-ledger/internal/auth"
	"github.com/gashop/shop-ledger/internal/catalog"
	"github.com/gashop/shop-ledger/internal/idempotency"
	"github.com/gashop/shop-ledger/internal/service"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Logger   *zap.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Catalog  *catalog.Catalog
	Accounts *service.AccountService
	TopUps   *service.TopUpService
	Orders   *service.OrderService
	Audit    *service.ReconciliationService

	Issuer      *auth.TokenIssuer
	Sessions    *auth.SessionStore
	Idempotency *idempotency.Store

	Admin handler.AdminCredentials
	Bank  handler.BankDetails

	PublicRateLimitRPS int
	AuthRateLimitRPS   int
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

func (api *Router) Routes() chi.Router {
	d := api.deps
	r := chi.NewRouter()
	r.Use(middleware.Trace)
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Recover(d.Logger))

	authHandler := handler.NewAuthHandler(d.Accounts, d.Issuer, d.Sessions, d.Admin)
	topUpHandler := handler.NewTopUpHandler(d.TopUps, d.Bank)
	orderHandler := handler.NewOrderHandler(d.Orders, d.Catalog)
	adminHandler := handler.NewAdminHandler(d.Accounts, d.TopUps, d.Orders, d.Audit)
	healthHandler := handler.NewHealthHandler(d.DB, d.Redis)

	authn := middleware.Auth(d.Issuer, d.Sessions, d.Logger)
	idem := middleware.Idempotency(d.Idempotency, d.Logger)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.Handler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(d.PublicRateLimitRPS))

		r.Post("/v1/auth/register", authHandler.Register)
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/auth/admin/login", authHandler.AdminLogin)
		r.Get("/v1/services", orderHandler.ListServices)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.AuthRateLimiter(d.AuthRateLimitRPS))

		r.Post("/v1/auth/logout", authHandler.Logout)
		r.Get("/v1/me", authHandler.Me)
		r.Get("/v1/me/history", authHandler.History)

		r.Get("/v1/payment-info", topUpHandler.PaymentInfo)
		r.With(idem).Post("/v1/topups", topUpHandler.Create)
		r.Get("/v1/topups", topUpHandler.ListMine)

		r.With(idem).Post("/v1/orders", orderHandler.Create)
		r.Get("/v1/orders", orderHandler.ListMine)
		r.Get("/v1/orders/{id}", orderHandler.Get)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Get("/v1/admin/topups", adminHandler.ListPendingTopUps)
			r.Post("/v1/admin/topups/{id}/resolve", adminHandler.ResolveTopUp)
			r.Get("/v1/admin/orders", adminHandler.ListOrders)
			r.Post("/v1/admin/orders/{id}/status", adminHandler.UpdateOrderStatus)
			r.Get("/v1/admin/accounts", adminHandler.ListAccounts)
			r.Delete("/v1/admin/accounts/{id}", adminHandler.DeleteAccount)
			r.Post("/v1/admin/reconciliation", adminHandler.RunReconciliation)
		})
	})

	return r
}
