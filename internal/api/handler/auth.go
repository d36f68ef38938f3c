package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "anonchat-ops"
	tokenTTL    = 72 * time.Hour
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// issueToken mints a moderator JWT signed with the configured secret.
func (h *Handler) issueToken() (string, error) {
	claims := jwt.MapClaims{
		"role": "moderator",
		"exp":  time.Now().Add(tokenTTL).Unix(),
		"iss":  tokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// Login exchanges the ops password for a moderator token.
func (h *Handler) Login(c *gin.Context) {
	if h.cfg.OpsPassword == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Moderator login is not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.OpsPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, err := h.issueToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// RequireModerator validates the moderator JWT from the Authorization
// header, or from the token query parameter for websocket clients that
// cannot set headers.
func (h *Handler) RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}

		if role, _ := claims["role"].(string); role != "moderator" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient role"})
			return
		}

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}
