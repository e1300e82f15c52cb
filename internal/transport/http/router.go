package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anasbld/pos_system/internal/handlers"
	"github.com/anasbld/pos_system/internal/middleware/auth"
	"github.com/anasbld/pos_system/internal/middleware/ratelimit"
)

type Deps struct {
	Gate           *auth.Gate
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	AdminHandler   *handlers.AdminHandler
	SearchHandler  *handlers.SearchHandler
	LoginLimiter   *ratelimit.Limiter
}

// Register wires the POS wire surface. Everything under /api/v1 passes the
// session gate so any presented token is resolved and rotated; the
// per-group RequireLogin/RequireAdmin middlewares decide who gets through.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1", d.Gate.Attach)

	v1.POST("/login", d.AuthHandler.Login, d.LoginLimiter.Middleware())

	if d.SearchHandler != nil && d.SearchHandler.ES != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	user := v1.Group("", d.Gate.RequireLogin)
	user.POST("/logout", d.AuthHandler.Logout)
	user.POST("/page_reloading", d.AuthHandler.PageReloading)
	user.POST("/change_user_password", d.AuthHandler.ChangePassword)
	user.POST("/products", d.ProductHandler.Products)
	user.POST("/load_cart", d.CartHandler.LoadCart)
	user.POST("/update_cart_item", d.CartHandler.UpdateCartItem)
	user.POST("/checkout", d.CartHandler.CheckoutCart)
	user.POST("/transactions", d.AdminHandler.Transactions)

	admin := v1.Group("", d.Gate.RequireAdmin)
	admin.POST("/stock", d.AdminHandler.Stock)
	admin.POST("/update_stock", d.AdminHandler.UpdateStock)
	admin.POST("/users", d.AdminHandler.Users)
	admin.POST("/update_users", d.AdminHandler.UpdateUsers)
}
