package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
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

// headerAuth stands in for the JWT middleware so tests can pick the
// acting user per request.
func headerAuth(c *fiber.Ctx) error {
	if v := c.Get("X-User-ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-User-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupClassApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Class{}, &models.ClassMembership{}))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	classService := service.NewClassService(repository.NewClassRepository(db), redisClient, 10*time.Minute, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		ClassHandler:  handler.NewClassHandler(classService, logger),
		JWTMiddleware: headerAuth,
	})

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID, role string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode
	_, err = io.Copy(rec.Body, resp.Body)
	require.NoError(t, err)
	return rec
}

func TestClassHandlerCreateAndJoin(t *testing.T) {
	app := setupClassApp(t)

	rec := doJSON(t, app, "POST", "/api/v1/admin/classes", "1", "admin", dto.ClassCreateRequest{
		Name: "Data Structures 2026",
	})
	require.Equal(t, fiber.StatusCreated, rec.Code)

	var created struct {
		Data dto.ClassResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Data.InviteCode, 8)

	rec = doJSON(t, app, "POST", "/api/v1/candidate/classes/join", "2", "candidate", dto.ClassJoinRequest{
		InviteCode: created.Data.InviteCode,
	})
	require.Equal(t, fiber.StatusOK, rec.Code)

	var joined struct {
		Data dto.ClassResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	require.Equal(t, created.Data.ID, joined.Data.ID)
	require.Empty(t, joined.Data.InviteCode)

	rec = doJSON(t, app, "GET", "/api/v1/candidate/classes", "2", "candidate", nil)
	require.Equal(t, fiber.StatusOK, rec.Code)

	rec = doJSON(t, app, "POST", "/api/v1/candidate/classes/join", "3", "candidate", dto.ClassJoinRequest{
		InviteCode: "NOPECODE",
	})
	require.Equal(t, fiber.StatusNotFound, rec.Code)
}

func TestClassHandlerRoleGuards(t *testing.T) {
	app := setupClassApp(t)

	rec := doJSON(t, app, "POST", "/api/v1/admin/classes", "2", "candidate", dto.ClassCreateRequest{
		Name: "Forbidden Class",
	})
	require.Equal(t, fiber.StatusForbidden, rec.Code)

	rec = doJSON(t, app, "GET", "/api/v1/admin/classes", "", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, rec.Code)
}
