package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by the auth middlewares
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// RoleSource resolves role grants and permission codes. Implemented by repository.RoleRepository.
type RoleSource interface {
	GetPermissionsByRoleNames(ctx context.Context, roleNames []string) ([]string, error)
	RolesForAccount(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

var (
	jwtSecret []byte
	roleStore RoleSource
)

// InitAuth sets the token secret and the role store used by the middlewares.
func InitAuth(secret []byte, roles RoleSource) {
	jwtSecret = secret
	roleStore = roles
	ClearPermissionCache("")
}

func GetJWTSecret() []byte {
	return jwtSecret
}

var (
	errMissingToken = errors.New("Authorization is missing")
	errBadFormat    = errors.New("Invalid authorization format. Expected 'Bearer <token>'")
)

// extractToken reads the access_token cookie, falling back to the Authorization header
func extractToken(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errBadFormat
	}
	return parts[1], nil
}

// ParseToken validates an HMAC-signed token and returns its claims
func ParseToken(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// authenticate parses the request token and stores the caller in the context.
// It aborts the request and returns false when the token is missing or invalid.
func authenticate(c *gin.Context) (jwt.MapClaims, bool) {
	tokenString, err := extractToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return nil, false
	}

	claims, err := ParseToken(tokenString, GetJWTSecret())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
		return nil, false
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	c.Set(ContextUserID, sub)
	c.Set(ContextUserRole, role)
	return claims, true
}

// RequireAuth accepts any valid token
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// ActorID returns the authenticated account id, or nil when the subject is not a uuid
func ActorID(c *gin.Context) *uuid.UUID {
	sub := c.GetString(ContextUserID)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil
	}
	return &id
}

// --- Permission-based middleware ---

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

var (
	permCache    sync.Map // roleName -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// RequirePermission validates the JWT and checks that the caller holds every required
// permission code. The caller's roles are the token role plus the roles granted to the
// account by approved registrations.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c)
		if !ok {
			return
		}

		roles := make([]string, 0, 2)
		if role, _ := claims["role"].(string); role != "" {
			roles = append(roles, role)
		}
		if actor := ActorID(c); actor != nil && roleStore != nil {
			granted, err := roleStore.RolesForAccount(c.Request.Context(), *actor)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
				return
			}
			roles = append(roles, granted...)
		}

		permSet := make(map[string]bool)
		for _, role := range roles {
			codes, err := getPermissionsForRole(c.Request.Context(), role)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
				return
			}
			for _, p := range codes {
				permSet[p] = true
			}
		}

		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// getPermissionsForRole returns cached or store-fetched permission codes for a role name
func getPermissionsForRole(ctx context.Context, roleName string) ([]string, error) {
	if entry, ok := permCache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	if roleStore == nil {
		return nil, fmt.Errorf("permission middleware not initialized")
	}

	codes, err := roleStore.GetPermissionsByRoleNames(ctx, []string{roleName})
	if err != nil {
		return nil, err
	}

	permCache.Store(roleName, permCacheEntry{
		codes:     codes,
		expiresAt: time.Now().Add(permCacheTTL),
	})

	return codes, nil
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func ClearPermissionCache(roleName string) {
	if roleName == "" {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
	} else {
		permCache.Delete(roleName)
	}
}
