package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolphys/internal/config"
)

func wsRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestWebSocketCORSCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		env    string
		origin string
		code   int
	}{
		{"dev localhost", "development", "http://localhost:3000", http.StatusOK},
		{"dev frontend", "development", "https://pool.poolhall.test", http.StatusOK},
		{"dev stranger", "development", "https://evil.test", http.StatusForbidden},
		{"prod localhost", "production", "http://localhost:3000", http.StatusForbidden},
		{"prod frontend", "production", "https://pool.poolhall.test", http.StatusOK},
		{"no origin", "production", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tc.env, FrontendURL: "https://pool.poolhall.test"}
			r := gin.New()
			r.GET("/ws", WebSocketCORSCheck(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, wsRequest(tc.origin))
			if w.Code != tc.code {
				t.Errorf("code = %d, want %d", w.Code, tc.code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Environment: "production", FrontendURL: "https://pool.poolhall.test, https://admin.poolhall.test"}
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.poolhall.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.poolhall.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
