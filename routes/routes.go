package routes

import (
	"net/http"

	"foodcart/api"
	"foodcart/live"
	"foodcart/metrics"
	"foodcart/middleware"
	"foodcart/ratelim"

	"github.com/julienschmidt/httprouter"
)

// Deps is everything the router needs.
type Deps struct {
	API         *api.Handler
	Hub         *live.Hub
	RateLimiter *ratelim.RateLimiter
	// UploadsDir is served at /static/uploads when set.
	UploadsDir string
}

func New(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", d.API.Health)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	AddMenuRoutes(router, d)
	AddCartRoutes(router, d)
	AddOrderRoutes(router, d)
	AddAdminRoutes(router, d)
	AddLiveRoutes(router, d)
	AddStaticRoutes(router, d)
	return router
}

func AddMenuRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/menu", d.API.GetMenu)
	router.GET("/api/payment-methods", d.API.PaymentMethods)
	router.GET("/api/statuses", d.API.Statuses)
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	session := middleware.Chain(middleware.Session)
	router.GET("/api/cart", session(d.API.GetCart))
	router.POST("/api/cart/items", session(d.API.AddToCart))
	router.PUT("/api/cart/items/:itemid", session(d.API.UpdateCartItem))
	router.DELETE("/api/cart/items/:itemid", session(d.API.RemoveCartItem))
	router.DELETE("/api/cart", session(d.API.ClearCart))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/checkout", middleware.Chain(d.RateLimiter.Limit, middleware.Session)(d.API.Checkout))
	router.GET("/api/orders/:orderid", d.API.GetOrder)
	router.GET("/api/orders/:orderid/track", d.API.TrackOrder)
	router.GET("/api/orders/:orderid/receipt", d.API.Receipt)
}

func AddAdminRoutes(router *httprouter.Router, d Deps) {
	limited := middleware.Chain(d.RateLimiter.Limit)
	router.POST("/api/admin/menu", limited(d.API.CreateMenuItem))
	router.GET("/api/admin/orders", d.API.ListOrders)
	router.PUT("/api/admin/orders/:orderid/status", limited(d.API.UpdateOrderStatus))
	router.GET("/api/admin/notifications", d.API.Notifications)
	router.DELETE("/api/admin/notifications", d.API.ClearNotifications)
}

func AddLiveRoutes(router *httprouter.Router, d Deps) {
	router.GET("/ws/admin", live.AdminSocket(d.Hub))
	router.GET("/ws/orders/:orderid", live.OrderSocket(d.Hub, d.API.App))
}

func AddStaticRoutes(router *httprouter.Router, d Deps) {
	if d.UploadsDir != "" {
		router.ServeFiles("/static/uploads/*filepath", http.Dir(d.UploadsDir))
	}
}
