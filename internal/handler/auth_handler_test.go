package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/config"
	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/handler"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
	"github.com/quizdeck/quizdeck-api/internal/router"
	"github.com/quizdeck/quizdeck-api/internal/service"
)

func setupAuthApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	authService := service.NewAuthService(repository.NewUserRepository(db), validate, service.AuthConfig{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
	}, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AuthHandler: handler.NewAuthHandler(authService, logger),
	})

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAuthHandlerRegisterAndLogin(t *testing.T) {
	app := setupAuthApp(t)

	resp := postJSON(t, app, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Asha Rao",
		Email:    "Asha@Example.com",
		Password: "correct horse",
		Role:     "candidate",
		Branch:   "cse-a",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var registered struct {
		Success bool             `json:"success"`
		Data    dto.UserResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	require.True(t, registered.Success)
	require.Equal(t, "asha@example.com", registered.Data.Email)
	require.Equal(t, "CSE-A", registered.Data.Branch)

	resp = postJSON(t, app, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Asha Again",
		Email:    "asha@example.com",
		Password: "correct horse",
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "asha@example.com",
		Password: "correct horse",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var signedIn struct {
		Data dto.TokenPairResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&signedIn))
	require.NotEmpty(t, signedIn.Data.AccessToken)
	require.NotEmpty(t, signedIn.Data.RefreshToken)

	resp = postJSON(t, app, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "asha@example.com",
		Password: "wrong horse",
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthHandlerRefresh(t *testing.T) {
	app := setupAuthApp(t)

	resp := postJSON(t, app, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ravi Kumar",
		Email:    "ravi@example.com",
		Password: "long enough",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ravi@example.com",
		Password: "long enough",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var signedIn struct {
		Data dto.TokenPairResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&signedIn))

	resp = postJSON(t, app, "/api/v1/auth/refresh", dto.RefreshRequest{
		RefreshToken: signedIn.Data.RefreshToken,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/auth/refresh", dto.RefreshRequest{
		RefreshToken: signedIn.Data.AccessToken,
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
