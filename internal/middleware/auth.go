package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/redis/go-redis/v9"
)

// OperatorKey is the gin context key holding the authenticated operator name.
const OperatorKey = "operator"

// TableTokenHeader carries a table's own control token.
const TableTokenHeader = "X-Table-Token"

var ErrInvalidToken = errors.New("invalid token")

// TableTokenFunc reports whether token controls table tableID.
type TableTokenFunc func(ctx context.Context, tableID, token string) bool

// TableOwner is the actor recorded for requests made with a table token.
func TableOwner(tableID string) string {
	return "table:" + tableID
}

func tokenTTL(cfg *config.Config) time.Duration {
	if cfg.TokenTTLMinute > 0 {
		return time.Duration(cfg.TokenTTLMinute) * time.Minute
	}
	return time.Hour
}

// IssueToken signs an HS256 JWT for the named operator.
func IssueToken(cfg *config.Config, operator string) (string, time.Time, error) {
	exp := time.Now().Add(tokenTTL(cfg))
	claims := jwt.MapClaims{"operator": operator, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken validates a JWT issued by IssueToken and returns the operator.
func ParseToken(cfg *config.Config, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	name, ok := claims["operator"].(string)
	if !ok || name == "" {
		return "", ErrInvalidToken
	}
	return name, nil
}

// APIKeyRedisKey is where a long-lived API key is stored, by hash.
func APIKeyRedisKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return "api_key:" + hex.EncodeToString(h[:])
}

// AuthMiddleware validates a bearer JWT and sets the operator in context.
// Bearer values that are not JWTs are looked up as API keys in Redis.
func AuthMiddleware(cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		if name, err := ParseToken(cfg, token); err == nil {
			c.Set(OperatorKey, name)
			c.Next()
			return
		}

		if rdb != nil {
			name, err := rdb.Get(context.Background(), APIKeyRedisKey(token)).Result()
			if err == nil && name != "" {
				c.Set(OperatorKey, name)
				c.Next()
				return
			}
			if err != nil && err != redis.Nil {
				log.Printf("AuthMiddleware: Redis error checking api key: %v", err)
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// TableAuthMiddleware lets the holder of a table's token drive that table.
// Requests carrying TableTokenHeader are checked against the :id table;
// anything else falls back to operator authentication.
func TableAuthMiddleware(cfg *config.Config, rdb *redis.Client, verify TableTokenFunc) gin.HandlerFunc {
	operatorAuth := AuthMiddleware(cfg, rdb)
	return func(c *gin.Context) {
		token := c.GetHeader(TableTokenHeader)
		if token == "" || verify == nil {
			operatorAuth(c)
			return
		}

		tableID := c.Param("id")
		if !verify(c.Request.Context(), tableID, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid table token"})
			return
		}
		c.Set(OperatorKey, TableOwner(tableID))
		c.Next()
	}
}
