package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/game"
)

// GetTableConfig returns the table geometry and shot limits a frontend needs
// to draw the table and aim
func GetTableConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := game.NewStandard8BallTable()
		pockets := make([]gin.H, len(table.Pockets))
		for i, p := range table.Pockets {
			pockets[i] = gin.H{"id": p.ID, "x": p.Position.X(), "z": p.Position.Z()}
		}

		pc := cfg.Physics()
		c.JSON(http.StatusOK, gin.H{
			"table_length":     game.TableLength,
			"table_width":      game.TableWidth,
			"ball_radius":      game.BallRadius,
			"pocket_radius":    game.PocketRadius,
			"pockets":          pockets,
			"min_strike_speed": game.MinStrikeSpeed,
			"max_strike_speed": game.MaxStrikeSpeed,
			"frame_delta":      game.FrameDelta,
			"physics_step":     pc.TimeStep,
			"frame_every":      cfg.FrameBroadcastEvery,
		})
	}
}
