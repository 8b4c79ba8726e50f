// Package auth verifies bearer tokens and enforces role permissions on the API.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles known to the dashboard.
const (
	RoleViewer  = "viewer"
	RoleOfficer = "officer"
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// Permissions checked by route handlers.
const (
	PermAnalyticsRead    = "analytics:read"
	PermAnalyticsRefresh = "analytics:refresh"
	PermIncidentsRead    = "incidents:read"
	PermIncidentsWrite   = "incidents:write"
	PermIncidentsVerify  = "incidents:verify"
	PermClustersAdmin    = "clusters:admin"
)

var rolePermissions = map[string][]string{
	RoleViewer:  {PermAnalyticsRead},
	RoleOfficer: {PermAnalyticsRead, PermIncidentsRead, PermIncidentsWrite},
	RoleAnalyst: {PermAnalyticsRead, PermAnalyticsRefresh, PermIncidentsRead},
	RoleAdmin: {
		PermAnalyticsRead, PermAnalyticsRefresh,
		PermIncidentsRead, PermIncidentsWrite, PermIncidentsVerify,
		PermClustersAdmin,
	},
}

const claimsKey = "claims"

// Claims are the JWT claims issued to dashboard users.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Can reports whether the claims' role grants perm.
func (c *Claims) Can(perm string) bool {
	for _, p := range rolePermissions[c.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

// IssueToken signs an HS256 token for sub with the given role.
func IssueToken(secret, sub, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware authenticates the request from the Authorization header, or the
// token query parameter for websocket upgrades. When disabled, every request
// runs as a local admin.
func Middleware(secret string, disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disabled {
			c.Set(claimsKey, &Claims{Sub: "local", Role: RoleAdmin})
			c.Next()
			return
		}

		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}
		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequirePermission rejects requests whose role does not grant perm.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if !claims.Can(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing permission " + perm})
			return
		}
		c.Next()
	}
}

// GetClaims extracts claims from the gin context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// Subject returns the authenticated subject, or "" when there is none.
func Subject(c *gin.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.Sub
	}
	return ""
}

func extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
