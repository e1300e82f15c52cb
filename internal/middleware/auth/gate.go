// Package auth is the request authentication gate: it resolves the inbound
// session token, attaches the session to the request, and arranges the token
// rotation every authenticated round trip gets.
package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anasbld/pos_system/internal/logging"
	"github.com/anasbld/pos_system/internal/models"
	"github.com/anasbld/pos_system/internal/session"
)

// TokenHeader carries the session token both ways: the client presents its
// current token here, and every successful authenticated response carries
// the next one, superseding the one just used.
const TokenHeader = "X-Session-Token"

const (
	ctxSession        = "pos.session"
	ctxToken          = "pos.token"
	ctxPresentedToken = "pos.presented_token"
	ctxSkipRotation   = "pos.skip_rotation"
)

type Gate struct {
	Sessions *session.Registry
}

// Attach resolves the token if one is present and schedules rotation on the
// response. Requests without a resolvable token proceed unauthenticated;
// handlers that need a session reject them via RequireLogin.
func (g *Gate) Attach(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(TokenHeader)
		if token == "" {
			return next(c)
		}
		c.Set(ctxPresentedToken, token)

		ses, ok := g.Sessions.Lookup(token)
		if !ok {
			l := logging.FromContext(c.Request().Context()).With("middleware", "session_gate")
			l.Warn("unresolvable token", "token_prefix", tokenPrefix(token))
			return next(c)
		}

		c.Set(ctxSession, ses)
		c.Set(ctxToken, token)

		// Rotation happens at response flush so the handler has already run:
		// a handler that tore the session down (logout, password change)
		// leaves nothing to rotate and no header is attached.
		c.Response().Before(func() {
			if c.Response().Status >= http.StatusBadRequest {
				return
			}
			if skip, _ := c.Get(ctxSkipRotation).(bool); skip {
				return
			}
			if nextToken, ok := g.Sessions.Rotate(CurrentToken(c)); ok {
				c.Response().Header().Set(TokenHeader, nextToken)
			}
		})

		return next(c)
	}
}

// RequireLogin rejects requests that did not resolve to a session.
func (g *Gate) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := SessionFrom(c); !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"success": false,
				"message": "Unauthorized",
			})
		}
		return next(c)
	}
}

// RequireAdmin layers the role check on top of RequireLogin; a valid session
// with the wrong role gets a 403, not a 401.
func (g *Gate) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.RequireLogin(func(c echo.Context) error {
		ses, _ := SessionFrom(c)
		if ses.Role != models.RoleAdmin {
			l := logging.FromContext(c.Request().Context()).With("middleware", "session_gate")
			l.Warn("forbidden", "username", ses.Username, "role", ses.Role)
			return c.JSON(http.StatusForbidden, echo.Map{
				"success": false,
				"message": "Forbidden",
			})
		}
		return next(c)
	})
}

// SessionFrom returns the session the gate resolved for this request.
func SessionFrom(c echo.Context) (session.Session, bool) {
	ses, ok := c.Get(ctxSession).(session.Session)
	return ses, ok
}

// CurrentToken returns the token this request authenticated with.
func CurrentToken(c echo.Context) string {
	token, _ := c.Get(ctxToken).(string)
	return token
}

// PresentedToken returns whatever token the client sent, resolvable or not.
func PresentedToken(c echo.Context) string {
	token, _ := c.Get(ctxPresentedToken).(string)
	return token
}

// SkipRotation keeps this response's token stable. The page-reload handoff
// uses it so the client can re-present the same token after the reload.
func SkipRotation(c echo.Context) {
	c.Set(ctxSkipRotation, true)
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
