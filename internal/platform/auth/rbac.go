package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Platform roles. A doctor belongs to a clinic; an affiliate refers patients
// to one; admin spans all clinics.
const (
	RoleAdmin     = "admin"
	RoleClinic    = "clinic"
	RoleDoctor    = "doctor"
	RoleAffiliate = "affiliate"
	RolePatient   = "patient"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admin always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the session holds the given role (admin implies all).
func HasRole(ctx context.Context, role string) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the session holds the admin role.
func IsAdmin(ctx context.Context) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// SameClinic reports whether the session belongs to the given clinic. Admin
// sessions always pass; everyone else is confined to their own clinic's rows.
func SameClinic(ctx context.Context, clinicSlug string) bool {
	if IsAdmin(ctx) {
		return true
	}
	return ClinicIDFromContext(ctx) == clinicSlug
}
