package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/response"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
	"github.com/codexalpha/blueprint_go_server/internal/testutil"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:      "test-secret",
			ExpireHours: 24,
		},
	}
	userRepo := repository.NewUserRepository(db)
	authService := service.NewAuthService(userRepo, cfg)
	handler := NewAuthHandler(authService)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return handler, db, cleanup
}

func TestAuthHandler_Register(t *testing.T) {
	handler, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/auth/register", handler.Register)

	w := performRequest(router, "POST", "/auth/register", dto.RegisterRequest{
		Username: "newcoach",
		Email:    "coach@example.com",
		Password: "secret-password",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "newcoach", data["username"])
	assert.NotZero(t, data["id"])
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	handler, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/auth/register", handler.Register)

	w := performRequest(router, "POST", "/auth/register", dto.RegisterRequest{
		Username: "newcoach",
		Email:    "coach@example.com",
		Password: "short",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAuthHandler_Register_UsernameTaken(t *testing.T) {
	handler, db, cleanup := setupAuthHandler(t)
	defer cleanup()

	existing := testutil.TestUser(t, db)

	router := gin.New()
	router.POST("/auth/register", handler.Register)

	w := performRequest(router, "POST", "/auth/register", dto.RegisterRequest{
		Username: existing.Username,
		Email:    "other@example.com",
		Password: "secret-password",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeConflict, resp.Code)
}

func TestAuthHandler_LoginFlow(t *testing.T) {
	handler, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	w := performRequest(router, "POST", "/auth/register", dto.RegisterRequest{
		Username: "logincoach",
		Email:    "login@example.com",
		Password: "secret-password",
	})
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "POST", "/auth/login", dto.LoginRequest{
		Username: "logincoach",
		Password: "secret-password",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["token"])
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	handler, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	w := performRequest(router, "POST", "/auth/register", dto.RegisterRequest{
		Username: "logincoach",
		Email:    "login@example.com",
		Password: "secret-password",
	})
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "POST", "/auth/login", dto.LoginRequest{
		Username: "logincoach",
		Password: "wrong-password",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuthHandler_Profile(t *testing.T) {
	handler, db, cleanup := setupAuthHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := gin.New()
	router.GET("/user/profile", asUser(user.ID, false), handler.Profile)

	w := performRequest(router, "GET", "/user/profile", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, user.Username, data["username"])
}

func TestAuthHandler_Profile_NoAuth(t *testing.T) {
	handler, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/user/profile", handler.Profile)

	w := performRequest(router, "GET", "/user/profile", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
