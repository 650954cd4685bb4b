package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T, extra ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, ok := models.ActorFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	r.GET("/me", handlers...)
	return r
}

func TestAuth(t *testing.T) {
	agentToken, err := IssueToken(testSecret, "agent-1", models.RoleAgent, "agent@example.com")
	require.NoError(t, err)
	foreignToken, err := IssueToken("other-secret", "agent-1", models.RoleAgent, "")
	require.NoError(t, err)
	badRole, err := IssueToken(testSecret, "agent-1", models.Role("seller"), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "bearer header", header: "Bearer " + agentToken, status: http.StatusOK},
		{name: "token query param", query: "?token=" + agentToken, status: http.StatusOK},
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token " + agentToken, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreignToken, status: http.StatusUnauthorized},
		{name: "unknown role", header: "Bearer " + badRole, status: http.StatusUnauthorized},
	}

	r := newAuthRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"agent-1","role":"agent"}`, w.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter(t, RequireAdmin())

	adminToken, err := IssueToken(testSecret, "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	agentToken, err := IssueToken(testSecret, "agent-1", models.RoleAgent, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+agentToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
