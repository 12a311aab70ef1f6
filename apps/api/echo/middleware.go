package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// studentMiddleware only lets students through: payments are made on a student's behalf.
func studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsStudent && claims.Subject != "" {
			return next(ctx)
		}
		return errHTTPForbidden
	}
}
