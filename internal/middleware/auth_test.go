package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/playmatatu/poolphys/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{Environment: "development", JWTSecret: "test-secret", TokenTTLMinute: 5}
}

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", AuthMiddleware(cfg, nil), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(OperatorKey))
	})
	return r
}

func TestIssueAndParseToken(t *testing.T) {
	cfg := testConfig()
	token, exp, err := IssueToken(cfg, "alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if d := time.Until(exp); d < 4*time.Minute || d > 5*time.Minute {
		t.Errorf("expiry in %v, want about 5m", d)
	}

	name, err := ParseToken(cfg, token)
	if err != nil || name != "alice" {
		t.Fatalf("ParseToken = %q, %v", name, err)
	}

	other := testConfig()
	other.JWTSecret = "different"
	if _, err := ParseToken(other, token); err != ErrInvalidToken {
		t.Errorf("token accepted under another secret: %v", err)
	}
}

func TestParseTokenRejectsExpiredAndForeignClaims(t *testing.T) {
	cfg := testConfig()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator": "alice",
		"exp":      time.Now().Add(-time.Minute).Unix(),
	})
	signed, _ := expired.SignedString([]byte(cfg.JWTSecret))
	if _, err := ParseToken(cfg, signed); err != ErrInvalidToken {
		t.Errorf("expired token: err = %v", err)
	}

	player := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"player_id": 7,
		"exp":       time.Now().Add(time.Minute).Unix(),
	})
	signed, _ = player.SignedString([]byte(cfg.JWTSecret))
	if _, err := ParseToken(cfg, signed); err != ErrInvalidToken {
		t.Errorf("token without operator claim: err = %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newAuthRouter(cfg)
	token, _, _ := IssueToken(cfg, "bob")

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token, http.StatusOK, "bob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("code = %d, want %d", w.Code, tc.code)
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tc.body)
			}
		})
	}
}

func TestAPIKeyRedisKeyIsHashed(t *testing.T) {
	k := APIKeyRedisKey("secret-key")
	if k == "api_key:secret-key" || len(k) != len("api_key:")+64 {
		t.Errorf("unexpected key %q", k)
	}
	if k != APIKeyRedisKey("secret-key") {
		t.Error("key derivation not stable")
	}
}

func TestTableAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	verify := func(ctx context.Context, tableID, token string) bool {
		return tableID == "tbl_1" && token == "s3cret"
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/tables/:id/shots", TableAuthMiddleware(cfg, nil, verify), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(OperatorKey))
	})
	operatorToken, _, _ := IssueToken(cfg, "bob")

	cases := []struct {
		name       string
		table      string
		tableToken string
		bearer     string
		code       int
		body       string
	}{
		{"table token", "tbl_1", "s3cret", "", http.StatusOK, "table:tbl_1"},
		{"wrong table token", "tbl_1", "nope", "", http.StatusUnauthorized, ""},
		{"token of another table", "tbl_2", "s3cret", "", http.StatusUnauthorized, ""},
		{"bad table token beats bearer", "tbl_1", "nope", operatorToken, http.StatusUnauthorized, ""},
		{"operator", "tbl_1", "", operatorToken, http.StatusOK, "bob"},
		{"nothing", "tbl_1", "", "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tables/"+tc.table+"/shots", nil)
			if tc.tableToken != "" {
				req.Header.Set(TableTokenHeader, tc.tableToken)
			}
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("code = %d, want %d", w.Code, tc.code)
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tc.body)
			}
		})
	}
}
