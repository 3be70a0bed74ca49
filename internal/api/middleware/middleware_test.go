package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	return router
}

func TestRequestIDSetsHeaderAndContext(t *testing.T) {
	router := newRouter()
	router.GET("/", func(c *gin.Context) {
		rid, ok := c.Get(RequestIDKey)
		assert.True(t, ok)
		assert.NotEmpty(t, rid)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestGetRequestLoggerFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetRequestLogger(c))
}

func TestRecoveryReturns500(t *testing.T) {
	router := newRouter()
	router.Use(Recovery(true))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func signToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"

	router := newRouter()
	router.Use(Auth(secret))
	router.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, send(""))
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, send("Basic abc"))
	})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, secret, time.Now().Add(time.Hour))
		assert.Equal(t, http.StatusOK, send("Bearer "+token))
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, secret, time.Now().Add(-time.Hour))
		assert.Equal(t, http.StatusUnauthorized, send("Bearer "+token))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", time.Now().Add(time.Hour))
		assert.Equal(t, http.StatusUnauthorized, send("Bearer "+token))
	})
}
