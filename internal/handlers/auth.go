package handlers

import (
	"context"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const tokenLifetime = 72 * time.Hour

// TokenVerifier checks identity provider ID tokens; *auth.Client satisfies it
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler exchanges identity provider tokens for local session tokens
type AuthHandler struct {
	userRepository repositories.UserRepository
	verifier       TokenVerifier
	jwtSecret      string
}

func NewAuthHandler(userRepo repositories.UserRepository, verifier TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		verifier:       verifier,
		jwtSecret:      jwtSecret,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token, creates the caller's profile on
// first sign-in and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := h.verifier.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	// Claims only seed a new profile; edits made through PUT /profile win.
	seed := &models.User{ID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		seed.Name = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		seed.AvatarRef = picture
	}
	if err := h.userRepository.CreateUserIfMissing(seed); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store user profile")
	}
	user, err := h.userRepository.GetUserByID(token.UID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user profile")
	}

	localJWT, err := h.generateJWT(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"token": localJWT, "user": user.ToCompact()}})
}

func (h *AuthHandler) generateJWT(userID string) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
