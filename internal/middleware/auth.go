package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenTTL = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// IDTokenVerifier checks Firebase ID tokens. *auth.Client implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Authenticator accepts HS256 tokens signed with the service secret and,
// when a verifier is configured, Firebase ID tokens.
type Authenticator struct {
	secret   []byte
	firebase IDTokenVerifier
	now      func() time.Time
}

// NewAuthenticator returns an authenticator. firebase may be nil.
func NewAuthenticator(secret string, firebase IDTokenVerifier) *Authenticator {
	return &Authenticator{secret: []byte(secret), firebase: firebase, now: time.Now}
}

func (a *Authenticator) GenerateToken(userID, email string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify resolves a bearer token to the caller's identity.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err == nil && token.Valid {
		if claims, ok := token.Claims.(*Claims); ok && claims.UserID != "" {
			return Identity{UserID: claims.UserID, Email: claims.Email}, nil
		}
	}
	if a.firebase == nil {
		return Identity{}, ErrInvalidToken
	}

	fbToken, err := a.firebase.VerifyIDToken(ctx, tokenString)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	email, _ := fbToken.Claims["email"].(string)
	return Identity{UserID: fbToken.UID, Email: email}, nil
}

func (a *Authenticator) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization format",
			})
		}

		ident, err := a.Verify(c.UserContext(), tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		setIdentity(c, ident)
		return c.Next()
	}
}

// WebSocketUpgrade checks the upgrade request and authenticates it via the
// token query parameter or the Authorization header.
func (a *Authenticator) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			// Also check Authorization header for non-browser clients
			authHeader := c.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				tokenString = ""
			}
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		ident, err := a.Verify(c.UserContext(), tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		setIdentity(c, ident)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, ident Identity) {
	c.Locals("userId", ident.UserID)
	c.Locals("email", ident.Email)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userId").(string)
	return userID
}

// GetEmail extracts the caller's email from context
func GetEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("email").(string)
	return email
}
