package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// jwtMiddleware authenticates the request from its bearer token and stores the Claims in the context.
func jwtMiddleware(secretKey []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			l := len(authScheme)
			if len(header) <= l+1 || !strings.EqualFold(header[:l], authScheme) || header[l] != ' ' {
				return errMissingToken
			}

			claims, err := parseToken(strings.TrimSpace(header[l+1:]), secretKey)
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}
