package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"backoffice/internal/gateway"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireAuth.
const (
	UserIDKey      = "userID"
	UserRoleKey    = "userRole"
	PermissionsKey = "permissions"
)

const adminRole = "admin"

var errMissingToken = errors.New("authorization is missing")

// Claims is what the service reads from the backend-issued token.
type Claims struct {
	Subject     string
	Role        string
	Permissions []string
}

// ParseToken verifies an HMAC-signed token and extracts its claims.
func ParseToken(tokenString string, secret []byte) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		// some backends put a numeric user id in sub
		if n, ok := mc["sub"].(float64); ok {
			sub = strconv.FormatFloat(n, 'f', -1, 64)
		} else {
			return Claims{}, jwt.ErrTokenInvalidSubject
		}
	}

	c := Claims{Subject: sub}
	c.Role, _ = mc["role"].(string)
	if perms, ok := mc["permissions"].([]interface{}); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				c.Permissions = append(c.Permissions, s)
			}
		}
	}
	return c, nil
}

// tokenFromRequest tries the access_token cookie first, then the
// Authorization header.
func tokenFromRequest(c *gin.Context) (string, error) {
	if tok, err := c.Cookie("access_token"); err == nil && tok != "" {
		return tok, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireAuth validates the JWT, stores the caller in the gin context and
// puts the caller's backend credentials in the request context so gateway
// calls are made on the user's behalf.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(UserRoleKey, claims.Role)
		c.Set(PermissionsKey, claims.Permissions)

		ctx := gateway.WithCredentials(c.Request.Context(), gateway.Credentials{
			Token:   tokenString,
			Cookies: c.Request.Cookies(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequirePermission checks the permission codes carried by the token. The
// admin role always passes. It must run after RequireAuth.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserRoleKey) == adminRole {
			c.Next()
			return
		}
		perms := c.GetStringSlice(PermissionsKey)
		for _, required := range requiredPerms {
			if !slices.Contains(perms, required) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}
		c.Next()
	}
}

// RequireRole lets only the listed roles through. It must run after RequireAuth.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(allowedRoles, c.GetString(UserRoleKey)) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated subject.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
