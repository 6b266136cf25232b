package middleware

import (
	"context"
	"fmt"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// IDTokenVerifier verifies Firebase ID tokens; *auth.Client satisfies it
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware accepts Firebase ID tokens directly, for clients
// that skip the local token exchange.
func FirebaseAuthMiddleware(verifier IDTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid or expired ID token: %v", err))
			}

			c.Set("firebaseToken", token)
			c.Set(UserIDKey, token.UID)
			return next(c)
		}
	}
}

// EitherAuth accepts a local JWT and falls back to a Firebase ID token.
func EitherAuth(jwtAuth, firebaseAuth echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			passed := false
			mark := func(echo.Context) error {
				passed = true
				return nil
			}
			if err := jwtAuth(mark)(c); err == nil && passed {
				return next(c)
			}
			return firebaseAuth(next)(c)
		}
	}
}
