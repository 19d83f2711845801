package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storelane/storelane-backend/api/controllers"
	webhookcontrollers "github.com/storelane/storelane-backend/api/controllers/webhooks"
	"github.com/storelane/storelane-backend/api/middleware"
	authsvc "github.com/storelane/storelane-backend/internal/auth"
	checkoutsvc "github.com/storelane/storelane-backend/internal/checkout"
	ordersvc "github.com/storelane/storelane-backend/internal/orders"
	productsvc "github.com/storelane/storelane-backend/internal/products"
	usersvc "github.com/storelane/storelane-backend/internal/users"
	stripewebhook "github.com/storelane/storelane-backend/internal/webhooks/stripe"
	"github.com/storelane/storelane-backend/pkg/auth/session"
	"github.com/storelane/storelane-backend/pkg/config"
	"github.com/storelane/storelane-backend/pkg/enums"
	"github.com/storelane/storelane-backend/pkg/logger"
	pkgredis "github.com/storelane/storelane-backend/pkg/redis"
	"github.com/storelane/storelane-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(ctx context.Context, accessID string) error
}

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	Redis          *pkgredis.Client
	Readiness      map[string]controllers.Pinger
	MetricsHandler http.Handler

	SessionManager sessionManager
	AuthService    authsvc.Service
	UserService    usersvc.Service
	ProductService productsvc.Service
	OrderService   ordersvc.Service
	CheckoutSvc    checkoutsvc.Service
	ChatService    controllers.ChatService
	ChatRelay      controllers.ChatSubscriber

	StripeClient *stripe.Client
	WebhookSvc   *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard
}

// NewRouter assembles the full route tree.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// A typed nil *redis.Client would defeat the middleware nil checks.
	var idemStore pkgredis.IdempotencyStore
	var limiterStore middleware.RateLimiterStore
	if deps.Redis != nil {
		idemStore = deps.Redis
		limiterStore = deps.Redis
	}
	idempotency := middleware.Idempotency(idemStore, logg)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookSvc, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, limiterStore, logg)).
			With(idempotency).
			Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiterStore, logg)).
			Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, cfg.JWT, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.ProductService, logg))
		r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(idempotency)

		r.Get("/ping", controllers.PrivatePing())
		r.Post("/checkout", controllers.Checkout(deps.CheckoutSvc, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(deps.OrderService, logg))
			r.Get("/{orderId}", controllers.GetMyOrder(deps.OrderService, logg))
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", controllers.PostChatMessage(deps.ChatService, logg))
			r.Get("/messages", controllers.ListChatMessages(deps.ChatService, logg))
			r.Post("/read", controllers.MarkChatRead(deps.ChatService, logg))
			r.Get("/stream", controllers.ChatStream(deps.ChatRelay, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(idempotency)

		r.Get("/ping", controllers.AdminPing())

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(deps.UserService, logg))
			r.Post("/{userId}/approve", controllers.AdminApproveUser(deps.UserService, logg))
			r.Post("/{userId}/reject", controllers.AdminRejectUser(deps.UserService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(deps.ProductService, logg))
			r.Post("/", controllers.AdminCreateProduct(deps.ProductService, logg))
			r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.ProductService, logg))
			r.Delete("/{productId}", controllers.AdminDeactivateProduct(deps.ProductService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.OrderService, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(deps.OrderService, logg))
			r.Post("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.OrderService, logg))
		})

		r.Route("/chat/threads", func(r chi.Router) {
			r.Get("/", controllers.AdminListChatThreads(deps.ChatService, logg))
			r.Get("/{threadId}/messages", controllers.AdminListChatMessages(deps.ChatService, logg))
			r.Post("/{threadId}/messages", controllers.AdminPostChatMessage(deps.ChatService, logg))
			r.Post("/{threadId}/read", controllers.AdminMarkChatRead(deps.ChatService, logg))
			r.Get("/{threadId}/stream", controllers.AdminChatStream(deps.ChatRelay, logg))
		})
	})

	return r
}
