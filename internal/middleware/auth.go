// Package middleware provides authentication, logging, metrics, tracing and
// rate limiting middleware for the Fiber app.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"inspiro/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "inspiro-api"
	TokenAudience = "inspiro-client"
	TokenTTL      = 7 * 24 * time.Hour

	revokedKeyPrefix = "blacklist:"
)

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

var errInvalidToken = errors.New("invalid or expired token")

// IssueToken signs an HS256 access token for the user.
func IssueToken(secret string, userID uint, username string, now time.Time) (string, *TokenClaims, error) {
	claims := &TokenClaims{
		UserID:    userID,
		Username:  username,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(TokenTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      claims.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      claims.JTI,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken verifies signature, expiry, issuer and audience.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, errInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errInvalidToken
	}

	out := &TokenClaims{UserID: uint(userID)}
	out.Username, _ = claims["username"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// RevokeToken blacklists the token's JTI until it would have expired anyway.
func RevokeToken(ctx context.Context, rdb *redis.Client, claims *TokenClaims) error {
	if rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, revokedKeyPrefix+claims.JTI, "1", ttl).Err()
}

func isRevoked(ctx context.Context, rdb *redis.Client, jti string) bool {
	if rdb == nil || jti == "" {
		return false
	}
	n, err := rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	return err == nil && n > 0
}

// bearerToken extracts the token from "Authorization: Bearer <token>", falling
// back to the token query parameter when allowQuery is set (browsers cannot
// set headers on WebSocket upgrades).
func bearerToken(c *fiber.Ctx, allowQuery bool) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

func setPrincipal(c *fiber.Ctx, claims *TokenClaims) {
	c.Locals("userID", claims.UserID)
	c.Locals("tokenClaims", claims)
	ctx := context.WithValue(c.UserContext(), UserIDKey, claims.UserID)
	c.SetUserContext(ctx)
}

// AuthRequired rejects requests without a valid, unrevoked bearer token.
func AuthRequired(secret string, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c, strings.HasPrefix(c.Path(), "/api/ws"))
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"), false)
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"), false)
		}
		if isRevoked(c.UserContext(), rdb, claims.JTI) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"), false)
		}

		setPrincipal(c, claims)
		return c.Next()
	}
}

// OptionalAuth resolves the viewer when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(secret string, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c, false); tokenString != "" {
			if claims, err := ParseToken(secret, tokenString); err == nil && !isRevoked(c.UserContext(), rdb, claims.JTI) {
				setPrincipal(c, claims)
			}
		}
		return c.Next()
	}
}

// ViewerID returns the authenticated user id, or 0 for anonymous requests.
func ViewerID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// Claims returns the verified token of the current request, if any.
func Claims(c *fiber.Ctx) *TokenClaims {
	claims, _ := c.Locals("tokenClaims").(*TokenClaims)
	return claims
}
