package routes

import (
	"context"
	"net/http"
	"time"

	"agromart/auth"
	"agromart/cart"
	"agromart/crops"
	"agromart/livefeed"
	"agromart/metrics"
	"agromart/middleware"
	"agromart/models"
	"agromart/orders"
	"agromart/pay"
	"agromart/ratelim"
	"agromart/surplus"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
)

// Deps carries everything the routes need; main builds it once.
type Deps struct {
	Tokens       *middleware.Tokens
	Metrics      *metrics.Metrics
	AuthLimiter  *ratelim.RateLimiter
	OrderLimiter *ratelim.RateLimiter
	Idempotency  pay.IdempotencyStore
	Hub          *livefeed.Hub
	WSOrigins    []string
	UploadDir    string
	// Health reports backing-store reachability; nil means always healthy.
	Health func(ctx context.Context) error

	Auth    *auth.Handlers
	Crops   *crops.Handlers
	Cart    *cart.Handlers
	Orders  *orders.Handlers
	Surplus *surplus.Handlers
}

// public wraps h with request metrics only.
func (d Deps) public(route string, h httprouter.Handle, mws ...middleware.Middleware) httprouter.Handle {
	return middleware.Chain(h, append([]middleware.Middleware{middleware.Instrument(d.Metrics, route)}, mws...)...)
}

// private additionally requires a valid bearer token.
func (d Deps) private(route string, h httprouter.Handle, mws ...middleware.Middleware) httprouter.Handle {
	return d.public(route, h, append([]middleware.Middleware{d.Tokens.Authenticate}, mws...)...)
}

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/auth/register", d.public("/api/auth/register", d.Auth.Register, d.AuthLimiter.Limit))
	router.POST("/api/auth/login", d.public("/api/auth/login", d.Auth.Login, d.AuthLimiter.Limit))
	router.GET("/api/users/me", d.private("/api/users/me", d.Auth.Me))
}

func AddCropRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/crops", d.private("/api/crops", d.Crops.ListMine))
	router.POST("/api/crops", d.private("/api/crops", d.Crops.Create))
	router.PUT("/api/crops/:id", d.private("/api/crops/:id", d.Crops.Update))
	router.DELETE("/api/crops/:id", d.private("/api/crops/:id", d.Crops.Delete))

	router.GET("/api/market/crops", d.public("/api/market/crops", d.Crops.Browse))
	router.GET("/api/market/crops/:id", d.public("/api/market/crops/:id", d.Crops.Get))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/cart", d.private("/api/cart", d.Cart.Get))
	router.POST("/api/cart", d.private("/api/cart", d.Cart.Add))
	router.PUT("/api/cart/:id", d.private("/api/cart/:id", d.Cart.Update))
	router.DELETE("/api/cart/:id", d.private("/api/cart/:id", d.Cart.Remove))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/orders", d.private("/api/orders", d.Orders.ListMine))
	router.POST("/api/orders", d.public("/api/orders", d.Orders.Place,
		d.OrderLimiter.Limit,
		d.Tokens.Authenticate,
		pay.Idempotency(d.Idempotency),
	))
	// GET /api/orders/all is served here too; the service checks the admin role.
	router.GET("/api/orders/:id", d.private("/api/orders/:id", d.Orders.Get))
	router.GET("/api/orders/:id/receipt", d.private("/api/orders/:id/receipt", d.Orders.Receipt))

	admin := middleware.RequireRoles(models.RoleAdmin)
	router.PUT("/api/orders/:id", d.private("/api/orders/:id", d.Orders.UpdateStatus, admin))
	router.DELETE("/api/orders/:id", d.private("/api/orders/:id", d.Orders.Delete, admin))
}

func AddSurplusRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/surplus", d.private("/api/surplus", d.Surplus.ListMine))
	router.POST("/api/surplus", d.private("/api/surplus", d.Surplus.Create))
}

func AddStaticRoutes(router *httprouter.Router, d Deps) {
	router.ServeFiles("/uploads/*filepath", http.Dir(d.UploadDir))
}

func AddUtilityRoutes(router *httprouter.Router, d Deps) {
	router.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				utils.RespondWithJSON(w, http.StatusServiceUnavailable, utils.M{"status": "unavailable"})
				return
			}
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
	})
	router.Handler(http.MethodGet, "/metrics", d.Metrics.Handler())
	router.GET("/ws/orders", livefeed.Handler(d.Hub, d.Tokens, d.WSOrigins))
}
