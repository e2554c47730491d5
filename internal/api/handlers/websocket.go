package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/ws"
)

// HandleTableWebSocket streams live table updates
func HandleTableWebSocket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws.HandleWebSocket(ws.TableHub, cfg)(c)
	}
}
