package handlers

import (
	"context"
	"errors"
	"fmt"
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

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Registry
	Producer *events.Producer
}

// Login handles both halves of the login protocol: the autologin handshake
// for a session that marked itself pending across a page reload, and the
// credential login that mints a fresh session.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	if ses, ok := auth.SessionFrom(c); ok {
		token := auth.CurrentToken(c)

		if ses.PendingAutologin {
			off := false
			h.Sessions.Update(token, session.Update{PendingAutologin: &off})
			l.Info("autologin_success", "username", ses.Username)
			return c.JSON(http.StatusOK, echo.Map{
				"success": true,
				"message": "Auto sign in successful",
				"user":    userInfo{ID: ses.UserID, Username: ses.Username, Role: ses.Role},
			})
		}

		// A live session presented without the reload marker means the token
		// was replayed or cached somewhere it should not be. The session is
		// revoked for the owner's safety.
		h.Sessions.Remove(token)
		l.Warn("autologin_replay", "username", ses.Username)
		return fail(c, http.StatusUnauthorized, "Session expired, please log in")
	}

	var req struct {
		Username     string `json:"username"`
		PasswordHash string `json:"password_hash"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return fail(c, http.StatusBadRequest, "Invalid body")
	}

	if req.Username == "" || req.PasswordHash == "" {
		if auth.PresentedToken(c) != "" {
			l.Warn("autologin_failed", "reason", "unknown_token")
			return fail(c, http.StatusUnauthorized, "Auto login failed")
		}
		l.Warn("login_failed", "status", 400, "reason", "missing_credentials")
		return fail(c, http.StatusBadRequest, "Username and password are required")
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return fail(c, http.StatusUnauthorized, "Invalid username or password")
	}

	if !hash.CheckPassword(user.PasswordHash, req.PasswordHash) {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return fail(c, http.StatusUnauthorized, "Invalid username or password")
	}

	ses, err := h.Sessions.Create(user.ID, user.Username, user.Role)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyConnected) {
			l.Warn("login_failed", "status", 409, "reason", "already_connected", "username", user.Username)
			return fail(c, http.StatusConflict, "User is already connected elsewhere")
		}
		l.Error("login_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Server side error")
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	c.Response().Header().Set(auth.TokenHeader, ses.Token)
	l.Info("login_success", "username", user.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Sign in successful",
		"token":   ses.Token,
		"user":    userInfo{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// PageReloading marks the session for one autologin and deliberately keeps
// the token stable: the browser re-presents it after the reload.
func (h *AuthHandler) PageReloading(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "page_reloading")

	ses, _ := auth.SessionFrom(c)
	auth.SkipRotation(c)

	on := true
	h.Sessions.Update(auth.CurrentToken(c), session.Update{PendingAutologin: &on})

	l.Info("reload_marked", "username", ses.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Ready to reload the page",
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	ses, _ := auth.SessionFrom(c)
	if !h.Sessions.Remove(auth.CurrentToken(c)) {
		l.Error("logout_failed", "username", ses.Username)
		return fail(c, http.StatusInternalServerError, "Could not log out, internal error")
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(ses.UserID), map[string]any{
		"type":     "user_logged_out",
		"userID":   ses.UserID,
		"username": ses.Username,
	})

	l.Info("logout_success", "username", ses.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Log out successful",
	})
}

// ChangePassword verifies the old hash, stores the new one and force-logs
// the session out; the token in flight stops resolving immediately.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "change_password")

	ses, _ := auth.SessionFrom(c)

	var req struct {
		OldPasswordHash string `json:"oldPasswordHash"`
		NewPasswordHash string `json:"newPasswordHash"`
	}
	if err := c.Bind(&req); err != nil || req.OldPasswordHash == "" || req.NewPasswordHash == "" {
		l.Warn("change_password_failed", "status", 400, "reason", "missing_parameters")
		return fail(c, http.StatusBadRequest, "Missing parameters")
	}

	var user models.User
	if err := h.DB.First(&user, ses.UserID).Error; err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Server side error")
	}

	if !hash.CheckPassword(user.PasswordHash, req.OldPasswordHash) {
		l.Warn("change_password_failed", "status", 403, "username", user.Username)
		return fail(c, http.StatusForbidden, "Forbidden")
	}

	newHash, err := hash.HashPassword(req.NewPasswordHash)
	if err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Server side error")
	}

	if err := h.DB.Model(&user).Update("password_hash", newHash).Error; err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "Server side error")
	}

	h.Sessions.Remove(auth.CurrentToken(c))
	l.Info("change_password_success", "username", user.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password changed successfully",
		"actions": []string{ActionLogout},
	})
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
