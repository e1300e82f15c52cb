package handlers

import (
	"github.com/labstack/echo/v4"
)

// Client-side refresh hints carried in the "actions" field of responses, so
// the front end knows which views to resynchronize.
const (
	ActionRenderProducts     = "render_products"
	ActionReloadProducts     = "reload_products"
	ActionRenderCart         = "render_cart"
	ActionRenderTransactions = "render_transactions"
	ActionRenderStock        = "render_stock"
	ActionReloadStock        = "reload_stock"
	ActionRenderUsers        = "render_users"
	ActionReloadUsers        = "reload_users"
	ActionLogout             = "logout"
)

func fail(c echo.Context, code int, message string, actions ...string) error {
	resp := echo.Map{"success": false, "message": message}
	if len(actions) > 0 {
		resp["actions"] = actions
	}
	return c.JSON(code, resp)
}

type userInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
