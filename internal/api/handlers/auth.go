package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/middleware"
	"github.com/playmatatu/poolphys/internal/operator"
)

// IssueOperatorToken exchanges an operator name and secret for a JWT
func IssueOperatorToken(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string `json:"name"`
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and token required"})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" || req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and token required"})
			return
		}
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator accounts unavailable"})
			return
		}

		op, err := operator.Authenticate(db, name, req.Token, c.ClientIP())
		if err != nil {
			operator.LogAction(db, name, c.ClientIP(), c.FullPath(), "login", nil, false)
			if errors.Is(err, operator.ErrNotFound) || errors.Is(err, operator.ErrInvalidToken) || errors.Is(err, operator.ErrIPNotAllowed) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		signed, exp, err := middleware.IssueToken(cfg, op.Name)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		operator.LogAction(db, op.Name, c.ClientIP(), c.FullPath(), "login", nil, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      signed,
			"expires_at": exp.Format(time.RFC3339),
			"operator":   gin.H{"name": op.Name, "display_name": op.DisplayName, "roles": op.Roles},
		})
	}
}
