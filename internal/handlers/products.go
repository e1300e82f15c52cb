package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/anasbld/pos_system/internal/logging"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/util"
)

type ProductHandler struct {
	DB *gorm.DB
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// Products lists what is sellable right now: only rows with stock left.
func (h *ProductHandler) Products(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "products")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Where("stock > 0").Count(&total).Error; err != nil {
		l.Error("products_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	var items []models.Product
	if err := h.DB.Where("stock > 0").Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("products_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Database error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "Loaded products successfully",
		"products": items,
		"meta": echo.Map{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
		"actions": []string{ActionRenderProducts},
	})
}
