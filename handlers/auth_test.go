package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/invoicely/config"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	handler := NewAuthHandler(db, &config.Config{
		JWTSecret:        "test-secret",
		JWTRefreshSecret: "test-refresh-secret",
	})

	router := gin.Default()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)
	router.POST("/auth/refresh", handler.Refresh)
	return router
}

func TestRegister(t *testing.T) {
	router := setupAuthRouter(t)

	payload := map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "correct-horse",
	}

	w := doJSON(router, "POST", "/auth/register", payload)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")
	assert.Contains(t, w.Body.String(), "refresh_token")

	t.Run("Duplicate Email", func(t *testing.T) {
		w := doJSON(router, "POST", "/auth/register", payload)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Short Password", func(t *testing.T) {
		w := doJSON(router, "POST", "/auth/register", map[string]string{
			"name":     "Bob",
			"email":    "bob@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	router := setupAuthRouter(t)

	register := map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "correct-horse",
	}
	w := doJSON(router, "POST", "/auth/register", register)
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("Valid Credentials", func(t *testing.T) {
		w := doJSON(router, "POST", "/auth/login", map[string]string{
			"email":    "ada@example.com",
			"password": "correct-horse",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "access_token")
	})

	t.Run("Wrong Password", func(t *testing.T) {
		w := doJSON(router, "POST", "/auth/login", map[string]string{
			"email":    "ada@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Unknown User", func(t *testing.T) {
		w := doJSON(router, "POST", "/auth/login", map[string]string{
			"email":    "nobody@example.com",
			"password": "whatever",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
