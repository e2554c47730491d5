package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/game"
)

// CreateTable racks a new table
func CreateTable(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sm, ok := requireManager(c)
		if !ok {
			return
		}

		s, err := sm.CreateSession(c.Request.Context())
		if err != nil {
			audit(c, db, "create_table", nil, false)
			respondError(c, err)
			return
		}

		audit(c, db, "create_table", map[string]interface{}{"table_id": s.ID}, true)
		view := tableView(s.Snapshot())
		view["token"] = s.Token
		c.Header("X-Table-ID", s.ID)
		c.JSON(http.StatusCreated, view)
	}
}

// ListTables returns recently created tables from the database
func ListTables(c *gin.Context) {
	sm, ok := requireManager(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	tables, err := sm.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables, "count": len(tables)})
}

// GetTable returns the live state of a table
func GetTable(c *gin.Context) {
	sm, ok := requireManager(c)
	if !ok {
		return
	}

	s, err := sm.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tableView(s.Snapshot()))
}

// GetShotHistory returns the recorded shots of a table
func GetShotHistory(c *gin.Context) {
	sm, ok := requireManager(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	shots, err := sm.ShotHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shots": shots, "count": len(shots)})
}

// TakeShot strikes the cue ball and returns the settled outcome
func TakeShot(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sm, ok := requireManager(c)
		if !ok {
			return
		}

		var params game.ShotParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shot"})
			return
		}

		id := c.Param("id")
		result, err := sm.TakeShot(c.Request.Context(), id, params)
		details := map[string]interface{}{"table_id": id, "angle": params.Angle, "power": params.Power}
		if err != nil {
			audit(c, db, "take_shot", details, false)
			respondError(c, err)
			return
		}

		details["rack"] = result.Rack
		details["shot_number"] = result.ShotNumber
		audit(c, db, "take_shot", details, true)
		c.JSON(http.StatusOK, result)
	}
}

// PlaceCueBall moves the cue ball while it is in hand
func PlaceCueBall(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sm, ok := requireManager(c)
		if !ok {
			return
		}

		var req struct {
			X *float64 `json:"x"`
			Z *float64 `json:"z"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.X == nil || req.Z == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "x and z required"})
			return
		}

		id := c.Param("id")
		s, err := sm.PlaceCueBall(c.Request.Context(), id, *req.X, *req.Z)
		details := map[string]interface{}{"table_id": id, "x": *req.X, "z": *req.Z}
		if err != nil {
			audit(c, db, "place_cue_ball", details, false)
			respondError(c, err)
			return
		}

		audit(c, db, "place_cue_ball", details, true)
		c.JSON(http.StatusOK, tableView(s.Snapshot()))
	}
}

// ResetTable re-racks a table
func ResetTable(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sm, ok := requireManager(c)
		if !ok {
			return
		}

		id := c.Param("id")
		s, err := sm.ResetSession(c.Request.Context(), id)
		if err != nil {
			audit(c, db, "reset_table", map[string]interface{}{"table_id": id}, false)
			respondError(c, err)
			return
		}

		audit(c, db, "reset_table", map[string]interface{}{"table_id": id}, true)
		c.JSON(http.StatusOK, tableView(s.Snapshot()))
	}
}

// EndTable closes a table. ?status=COMPLETED marks it finished, anything
// else cancels it.
func EndTable(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sm, ok := requireManager(c)
		if !ok {
			return
		}

		status := game.StatusCancelled
		if strings.EqualFold(c.Query("status"), string(game.StatusCompleted)) {
			status = game.StatusCompleted
		}

		id := c.Param("id")
		details := map[string]interface{}{"table_id": id, "status": status}
		if err := sm.EndSession(c.Request.Context(), id, status); err != nil {
			audit(c, db, "end_table", details, false)
			respondError(c, err)
			return
		}

		audit(c, db, "end_table", details, true)
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
	}
}
