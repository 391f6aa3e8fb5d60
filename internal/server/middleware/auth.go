package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermReportView   = "report.view"
	PermReportDelete = "report.delete"
	PermHistoryView  = "history.view"
)

var allPermissions = []string{PermReportView, PermReportDelete, PermHistoryView}

var errInvalidUserID = errors.New("invalid user id")

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

// AuthMiddleware guards the survey admin routes. It accepts either the master
// API key or a JWT verified against the configured key set.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Unauthorized")
		}

		ac := c.(*AppContext)
		if user := ac.App.masterUser(token); user != nil {
			ac.User = user
			return next(c)
		}

		if ac.App.Keyfunc == nil {
			return unauthorized(c, "Unauthorized")
		}
		parsed, err := jwt.Parse(token, ac.App.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		user, err := userFromClaims(claims)
		if err != nil {
			return unauthorized(c, "Invalid user ID")
		}
		ac.User = user
		return next(c)
	}
}

func (app *App) masterUser(token string) *AppUser {
	if app.MasterAPIKey == "" || app.MasterUserID == 0 || app.MasterUserRole == "" {
		return nil
	}
	if token != app.MasterAPIKey {
		return nil
	}
	return &AppUser{UserID: app.MasterUserID, Role: app.MasterUserRole, Permissions: allPermissions}
}

// userFromClaims reads id, role and permissions. Admins without an explicit
// permission list get every survey permission.
func userFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	user := &AppUser{Role: "user"}

	switch id := claims["id"].(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errInvalidUserID
		}
		user.UserID = n
	case float64:
		user.UserID = int64(id)
	default:
		return nil, errInvalidUserID
	}

	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}
	if perms, ok := claims["permissions"].([]any); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				user.Permissions = append(user.Permissions, s)
			}
		}
	}
	if user.Role == "admin" && len(user.Permissions) == 0 {
		user.Permissions = allPermissions
	}
	return user, nil
}
