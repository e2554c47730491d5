package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolphys/internal/config"
)

// allowedOrigins lists the browser origins allowed to call the API and
// open table websockets outside development.
func allowedOrigins(cfg *config.Config) []string {
	var origins []string
	for _, o := range strings.Split(cfg.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:")
}

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	log.Printf("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With", "X-Table-Token",
		},
		ExposeHeaders: []string{
			"Content-Length", "X-Table-ID",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour, // Cache preflight responses
	}

	origins := allowedOrigins(cfg)
	if cfg.Environment == "development" {
		// Any local dev server plus whatever FRONTEND_URL names
		corsConfig.AllowOriginFunc = func(origin string) bool {
			if isLocalOrigin(origin) {
				return true
			}
			for _, o := range origins {
				if o == origin {
					return true
				}
			}
			return false
		}
	} else {
		if len(origins) == 0 {
			log.Printf("[CORS] No FRONTEND_URL configured, browser origins will be rejected")
			origins = []string{"https://localhost"}
		}
		corsConfig.AllowOrigins = origins
		log.Printf("[CORS] Production allowed origins: %v", origins)
	}

	return cors.New(corsConfig)
}

// WebSocketCORSCheck validates WebSocket upgrade origins
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only check for WebSocket upgrade requests
		if !strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade") ||
			strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			// Non-browser viewers (bots, replay tools) send no origin
			c.Next()
			return
		}

		allowed := cfg.Environment == "development" && isLocalOrigin(origin)
		if !allowed {
			for _, o := range allowedOrigins(cfg) {
				if origin == o {
					allowed = true
					break
				}
			}
		}

		if !allowed {
			c.JSON(403, gin.H{"error": "WebSocket origin not allowed"})
			c.Abort()
			return
		}

		c.Next()
	}
}
