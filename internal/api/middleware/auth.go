package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AdminIssuer   = "labelrelay-admin"
	APIKeyHeader  = "X-API-Key"
	defaultJWTTTL = time.Hour
	claimsKey     = "claims"
	authMethodKey = "auth_method"
)

type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// AdminAuth guards the management routes. A request passes with the static
// API key or with a bearer token signed by the JWT secret.
type AdminAuth struct {
	apiKey string
	secret []byte
	ttl    time.Duration
}

func NewAdminAuth(apiKey, jwtSecret string, ttl time.Duration) *AdminAuth {
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	a := &AdminAuth{apiKey: apiKey, ttl: ttl}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

func (a *AdminAuth) Enabled() bool {
	return a.apiKey != "" || len(a.secret) > 0
}

// GenerateToken issues a management token for subject.
func (a *AdminAuth) GenerateToken(subject string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    AdminIssuer,
		},
		Scope: "manage",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AdminAuth) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(AdminIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Management API not configured"})
			return
		}

		if key := c.GetHeader(APIKeyHeader); key != "" && a.apiKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) == 1 {
				c.Set(authMethodKey, "api_key")
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		if token := bearerToken(c); token != "" && len(a.secret) > 0 {
			claims, err := a.validateToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Set(authMethodKey, "jwt")
			c.Set(claimsKey, claims)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
}
