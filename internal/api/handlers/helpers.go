package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/game"
	"github.com/playmatatu/poolphys/internal/middleware"
	"github.com/playmatatu/poolphys/internal/operator"
)

// errorStatus maps game errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrTableClosed), errors.Is(err, game.ErrBallInHand),
		errors.Is(err, game.ErrNotBallInHand), errors.Is(err, game.ErrBallsMoving):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidPower), errors.Is(err, game.ErrInvalidPlacement),
		errors.Is(err, game.ErrCueBallPocketed):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNoDatabase), errors.Is(err, game.ErrWorldFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// VerifyTableToken checks a table token against the live manager.
func VerifyTableToken(ctx context.Context, tableID, token string) bool {
	if game.Manager == nil {
		return false
	}
	return game.Manager.VerifyToken(ctx, tableID, token)
}

func requireManager(c *gin.Context) (*game.SessionManager, bool) {
	if game.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "table manager not initialized"})
		return nil, false
	}
	return game.Manager, true
}

// audit records an operator action, if a database is configured
func audit(c *gin.Context, db *sqlx.DB, action string, details map[string]interface{}, success bool) {
	if db == nil {
		return
	}
	name := c.GetString(middleware.OperatorKey)
	operator.LogAction(db, name, c.ClientIP(), c.FullPath(), action, details, success)
}

// tableView is the public JSON shape of a table. The table token is only
// returned once, on creation.
func tableView(snap game.SessionSnapshot) gin.H {
	return gin.H{
		"id":            snap.ID,
		"status":        snap.Status,
		"rack":          snap.Rack,
		"shot_number":   snap.ShotNumber,
		"ball_in_hand":  snap.BallInHand,
		"balls":         snap.Balls,
		"created_at":    snap.CreatedAt,
		"last_activity": snap.LastActivity,
	}
}
