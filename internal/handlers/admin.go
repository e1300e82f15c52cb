package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/events"
	"github.com/anasbld/pos_system/internal/hash"
	"github.com/anasbld/pos_system/internal/logging"
	"github.com/anasbld/pos_system/internal/middleware/auth"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/session"
)

// Stock and user management actions, closed sets checked per variant.
const (
	stockActionAdd    = "AddOneProduct"
	stockActionUpdate = "UpdateOneProduct"
	stockActionRemove = "RemoveOneProduct"

	userActionAdd    = "AddNewUser"
	userActionRemove = "RemoveUser"
)

// defaultUserPassword is the SHA-256 the client would send for the
// well-known starter password handed to newly created accounts.
var defaultUserPassword = hash.SHA256Hex("0123456789")

type AdminHandler struct {
	DB       *gorm.DB
	Sessions *session.Registry
	Producer *events.Producer
}

type transactionRow struct {
	ID        uint               `json:"id"`
	UserID    uint               `json:"user_id"`
	Username  string             `json:"username"`
	Total     float64            `json:"total"`
	Timestamp time.Time          `json:"timestamp"`
	Items     []session.CartLine `json:"items"`
}

// Transactions is role-scoped rather than admin-only: admins see every
// transaction, everyone else only their own.
func (h *AdminHandler) Transactions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "transactions")

	ses, _ := auth.SessionFrom(c)

	type joined struct {
		models.Transaction
		Username string
	}

	q := h.DB.Model(&models.Transaction{}).
		Select("transactions.*, users.username").
		Joins("JOIN users ON users.id = transactions.user_id").
		Order("transactions.created_at DESC")
	if ses.Role != models.RoleAdmin {
		q = q.Where("transactions.user_id = ?", ses.UserID)
	}

	var rows []joined
	if err := q.Find(&rows).Error; err != nil {
		l.Error("transactions_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	out := make([]transactionRow, 0, len(rows))
	for _, row := range rows {
		var items []session.CartLine
		if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
			l.Error("transactions_failed", "status", 500, "reason", "items_decode", "transaction_id", row.ID, "error", err)
			return fail(c, http.StatusInternalServerError, "Error processing transactions")
		}
		out = append(out, transactionRow{
			ID:        row.ID,
			UserID:    row.UserID,
			Username:  row.Username,
			Total:     row.Total,
			Timestamp: row.CreatedAt,
			Items:     items,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"transactions": out,
		"actions":      []string{ActionRenderTransactions},
	})
}

// Stock returns every product row, zero stock included, for the admin view.
func (h *AdminHandler) Stock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock")

	var products []models.Product
	if err := h.DB.Order("id ASC").Find(&products).Error; err != nil {
		l.Error("stock_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "Loaded products successfully",
		"products": products,
		"actions":  []string{ActionRenderStock},
	})
}

func (h *AdminHandler) UpdateStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_stock")

	var req struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid body")
	}

	switch req.Action {
	case stockActionAdd:
		return h.addProduct(c, l, req.Data)
	case stockActionUpdate:
		return h.updateProduct(c, l, req.Data)
	case stockActionRemove:
		return h.removeProduct(c, l, req.Data)
	default:
		l.Warn("update_stock_failed", "status", 400, "reason", "invalid_action", "action", req.Action)
		return fail(c, http.StatusBadRequest, "Invalid action")
	}
}

func (h *AdminHandler) addProduct(c echo.Context, l *slog.Logger, data json.RawMessage) error {
	var req struct {
		Name     string  `json:"name"`
		Batch    string  `json:"batch"`
		Category string  `json:"category"`
		Price    float64 `json:"price"`
		Stock    uint    `json:"stock"`
		ImgURL   string  `json:"imgurl"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}
	if req.Name == "" || req.Batch == "" || req.Category == "" || req.ImgURL == "" || req.Price <= 0 {
		l.Warn("update_stock_failed", "status", 400, "reason", "missing_parameters")
		return fail(c, http.StatusBadRequest, "Missing parameters")
	}

	prod := models.Product{
		Name:     req.Name,
		Batch:    req.Batch,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.Stock,
		ImgURL:   req.ImgURL,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	h.publishStock(c, map[string]any{"type": "product_added", "productID": prod.ID, "name": prod.Name})
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"product_id": prod.ID,
		"actions":    []string{ActionReloadStock, ActionReloadProducts},
	})
}

// updatableColumns is the closed set of product fields an admin may touch;
// the column name always comes from here, never from the request.
var updatableColumns = map[string]bool{
	"name":     true,
	"batch":    true,
	"category": true,
	"price":    true,
	"stock":    true,
	"imgurl":   true,
}

func (h *AdminHandler) updateProduct(c echo.Context, l *slog.Logger, data json.RawMessage) error {
	var req struct {
		ProductID uint        `json:"product_id"`
		Key       string      `json:"key"`
		Value     interface{} `json:"value"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}
	if req.ProductID == 0 || req.Key == "" || req.Value == nil || !updatableColumns[req.Key] {
		l.Warn("update_stock_failed", "status", 400, "reason", "invalid_parameters", "key", req.Key)
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}

	if req.Key == "price" || req.Key == "stock" {
		v, ok := req.Value.(float64)
		if !ok || v < 0 || (req.Key == "price" && v <= 0) {
			l.Warn("update_stock_failed", "status", 400, "reason", "invalid_value", "key", req.Key)
			return fail(c, http.StatusBadRequest, "Invalid parameters")
		}
	}

	res := h.DB.Model(&models.Product{}).Where("id = ?", req.ProductID).Update(req.Key, req.Value)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "Database error")
	}
	if res.RowsAffected == 0 {
		l.Warn("update_stock_failed", "status", 404, "product_id", req.ProductID)
		return fail(c, http.StatusNotFound, "Product not found")
	}

	h.publishStock(c, map[string]any{"type": "product_updated", "productID": req.ProductID, "key": req.Key})
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"actions": []string{ActionReloadStock, ActionReloadProducts},
	})
}

func (h *AdminHandler) removeProduct(c echo.Context, l *slog.Logger, data json.RawMessage) error {
	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ProductID == 0 {
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}

	var prod models.Product
	if err := h.DB.First(&prod, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_stock_failed", "status", 404, "product_id", req.ProductID)
			return fail(c, http.StatusNotFound, "Product not found")
		}
		return fail(c, http.StatusInternalServerError, "Database error")
	}
	if err := h.DB.Delete(&prod).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	h.publishStock(c, map[string]any{"type": "product_removed", "productID": prod.ID, "name": prod.Name})
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"actions": []string{ActionReloadStock, ActionReloadProducts},
	})
}

// Users lists every account with its online status from the registry.
func (h *AdminHandler) Users(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users")

	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		l.Error("users_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	live := make(map[string]bool)
	for _, name := range h.Sessions.LiveUsernames() {
		live[name] = true
	}

	type userRow struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		Status   bool   `json:"status"`
	}
	out := make([]userRow, 0, len(users))
	for _, u := range users {
		out = append(out, userRow{ID: u.ID, Username: u.Username, Role: u.Role, Status: live[u.Username]})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"users":   out,
		"actions": []string{ActionRenderUsers},
	})
}

func (h *AdminHandler) UpdateUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_users")

	var req struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid body")
	}

	switch req.Action {
	case userActionAdd:
		return h.addUser(c, l, req.Data)
	case userActionRemove:
		return h.removeUser(c, l, req.Data)
	default:
		l.Warn("update_users_failed", "status", 400, "reason", "invalid_action", "action", req.Action)
		return fail(c, http.StatusBadRequest, "Invalid action")
	}
}

func (h *AdminHandler) addUser(c echo.Context, l *slog.Logger, data json.RawMessage) error {
	var req struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}
	if req.Username == "" || (req.Role != models.RoleAdmin && req.Role != models.RoleCashier) {
		l.Warn("update_users_failed", "status", 400, "reason", "missing_parameters")
		return fail(c, http.StatusBadRequest, "Missing parameters")
	}

	var existing models.User
	if err := h.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		l.Warn("update_users_failed", "status", 409, "reason", "user_exists", "username", req.Username)
		return fail(c, http.StatusConflict, "User already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	pwHash, err := hash.HashPassword(defaultUserPassword)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Server side error")
	}

	user := models.User{Username: req.Username, PasswordHash: pwHash, Role: req.Role}
	if err := h.DB.Create(&user).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	h.publishUsers(c, map[string]any{"type": "user_added", "userID": user.ID, "username": user.Username})
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user_id": user.ID,
		"actions": []string{ActionReloadUsers},
	})
}

func (h *AdminHandler) removeUser(c echo.Context, l *slog.Logger, data json.RawMessage) error {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == 0 {
		return fail(c, http.StatusBadRequest, "Invalid parameters")
	}

	var user models.User
	if err := h.DB.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_users_failed", "status", 404, "user_id", req.UserID)
			return fail(c, http.StatusNotFound, "User not found")
		}
		return fail(c, http.StatusInternalServerError, "Database error")
	}
	if err := h.DB.Delete(&user).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	h.publishUsers(c, map[string]any{"type": "user_removed", "userID": user.ID, "username": user.Username})
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"actions": []string{ActionReloadUsers},
	})
}

func (h *AdminHandler) publishStock(c echo.Context, event map[string]any) {
	h.publishTo(c, events.TopicStockEvents, event)
}

func (h *AdminHandler) publishUsers(c echo.Context, event map[string]any) {
	h.publishTo(c, events.TopicUserEvents, event)
}

func (h *AdminHandler) publishTo(c echo.Context, topic string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key := fmt.Sprint(event["type"])
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
