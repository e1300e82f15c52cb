package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/checkout"
	"github.com/anasbld/pos_system/internal/events"
	"github.com/anasbld/pos_system/internal/logging"
	"github.com/anasbld/pos_system/internal/middleware/auth"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/observability"
	"github.com/anasbld/pos_system/internal/session"
)

// Wire action names for update_cart_item, a closed set.
const (
	cartActionAdd    = "add_product"
	cartActionRemove = "remove_product"
	cartActionReduce = "reduce_quantity"
)

type CartHandler struct {
	DB       *gorm.DB
	Sessions *session.Registry
	Checkout *checkout.Coordinator
	Producer *events.Producer
}

func (h *CartHandler) LoadCart(c echo.Context) error {
	ses, _ := auth.SessionFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"cart":    ses.Cart,
		"actions": []string{ActionRenderCart},
	})
}

// UpdateCartItem applies one cart engine action. Every success returns the
// full resulting cart so the client can resynchronize its view.
func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_cart_item")

	ses, _ := auth.SessionFrom(c)
	token := auth.CurrentToken(c)

	var req struct {
		ProductID uint   `json:"product_id"`
		Action    string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("cart_update_failed", "status", 400, "error", err)
		return fail(c, http.StatusBadRequest, "Invalid body")
	}

	var (
		cart []session.CartLine
		err  error
	)

	switch req.Action {
	case cartActionAdd:
		cart, err = h.addProduct(c, token, req.ProductID)
		if err != nil || cart == nil {
			// addProduct already wrote the failure response
			observability.CartMutationsTotal.WithLabelValues(req.Action, "rejected").Inc()
			return err
		}
	case cartActionRemove:
		cart, err = h.Sessions.RemoveFromCart(token, req.ProductID)
	case cartActionReduce:
		cart, err = h.Sessions.ReduceQuantity(token, req.ProductID)
	default:
		l.Warn("cart_update_failed", "status", 400, "reason", "unknown_action", "action", req.Action)
		return fail(c, http.StatusBadRequest,
			"Action must be 'add_product', 'remove_product' or 'reduce_quantity'")
	}

	if err != nil {
		observability.CartMutationsTotal.WithLabelValues(req.Action, "rejected").Inc()
		switch {
		case errors.Is(err, session.ErrLineNotFound):
			l.Warn("cart_update_failed", "status", 404, "product_id", req.ProductID)
			return fail(c, http.StatusNotFound, "No product found with that id in your cart")
		case errors.Is(err, session.ErrSessionNotFound):
			return fail(c, http.StatusUnauthorized, "Session expired")
		default:
			l.Error("cart_update_failed", "status", 500, "error", err)
			return fail(c, http.StatusInternalServerError, "Server side error")
		}
	}

	observability.CartMutationsTotal.WithLabelValues(req.Action, "ok").Inc()
	h.publish(c, map[string]any{
		"type":      "cart_updated",
		"userID":    ses.UserID,
		"action":    req.Action,
		"productID": req.ProductID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"cart":    cart,
		"actions": []string{ActionRenderCart},
	})
}

// addProduct builds a cart line from the live product row; the stock level
// captured here becomes the line's ceiling for every later add. On failure
// it writes the response itself and returns a nil cart.
func (h *CartHandler) addProduct(c echo.Context, token string, productID uint) ([]session.CartLine, error) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_cart_item")

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("cart_add_failed", "status", 404, "product_id", productID)
			return nil, fail(c, http.StatusNotFound, "Product not found")
		}
		l.Error("cart_add_failed", "status", 500, "error", err)
		return nil, fail(c, http.StatusInternalServerError, "Server side error")
	}

	if product.Stock < 1 {
		l.Warn("cart_add_failed", "status", 400, "reason", "out_of_stock", "product_id", productID)
		return nil, fail(c, http.StatusBadRequest, "Product out of stock")
	}

	line := session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Batch:     product.Batch,
		Price:     product.Price,
		ImgURL:    product.ImgURL,
		Quantity:  1,
		MaxStock:  product.Stock,
	}

	cart, err := h.Sessions.AddToCart(token, line)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCapacityExceeded):
			l.Warn("cart_add_failed", "status", 400, "reason", "capacity_exceeded", "product_id", productID)
			return nil, c.JSON(http.StatusBadRequest, echo.Map{
				"success":  false,
				"message":  fmt.Sprintf("Only %d items available", product.Stock),
				"maxStock": product.Stock,
				"actions":  []string{ActionRenderProducts},
			})
		case errors.Is(err, session.ErrInvalidLine):
			l.Warn("cart_add_failed", "status", 400, "reason", "invalid_line", "product_id", productID)
			return nil, fail(c, http.StatusBadRequest, "Invalid product")
		case errors.Is(err, session.ErrSessionNotFound):
			return nil, fail(c, http.StatusUnauthorized, "Session expired")
		default:
			l.Error("cart_add_failed", "status", 500, "error", err)
			return nil, fail(c, http.StatusInternalServerError, "Server side error")
		}
	}
	return cart, nil
}

// CheckoutCart runs the checkout coordinator over the session's cart. The
// cart is cleared only after the store transaction committed; on a stock
// conflict the client is told to re-sync products and cart, since what it
// holds is no longer authoritative.
func (h *CartHandler) CheckoutCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout")

	ses, _ := auth.SessionFrom(c)

	receipt, err := h.Checkout.Checkout(ctx, ses.UserID, ses.Cart)
	if err != nil {
		var stockErr *checkout.StockError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			observability.CheckoutsTotal.WithLabelValues("empty").Inc()
			return fail(c, http.StatusBadRequest, "Your cart is empty")
		case errors.As(err, &stockErr):
			observability.CheckoutsTotal.WithLabelValues("conflict").Inc()
			return fail(c, http.StatusBadRequest, stockErr.Error(),
				ActionReloadProducts, ActionRenderCart)
		default:
			observability.CheckoutsTotal.WithLabelValues("error").Inc()
			l.Error("checkout_failed", "status", 500, "error", err)
			return fail(c, http.StatusInternalServerError, "Server side error")
		}
	}

	if _, err := h.Sessions.EmptyCart(auth.CurrentToken(c)); err != nil {
		l.Error("cart_clear_failed", "error", err)
	}

	observability.CheckoutsTotal.WithLabelValues("success").Inc()
	h.publish(c, map[string]any{
		"type":          "order_completed",
		"userID":        ses.UserID,
		"transactionID": receipt.TransactionID,
		"total":         receipt.Total,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Order completed successfully!",
		"actions": []string{ActionReloadProducts, ActionRenderCart},
	})
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicSaleEvents, fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
