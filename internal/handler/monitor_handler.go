package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizdeck/quizdeck-api/internal/observability"
)

const monitorInterval = 5 * time.Second

// MonitorHandler streams live attempt presence to admins over a websocket.
// Presence keys are written by the attempt heartbeat and expire on their own,
// so a snapshot of matching keys is the set of candidates currently working.
type MonitorHandler struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewMonitorHandler constructs the handler.
func NewMonitorHandler(redisClient *redis.Client, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		redis:  redisClient,
		logger: logger.With().Str("component", "monitor_handler").Logger(),
	}
}

// Register binds the live-monitor route under the provided router group.
func (h *MonitorHandler) Register(router fiber.Router) {
	router.Use("/assignments/:id/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/assignments/:id/live", websocket.New(h.handleConnection))
}

type presenceSnapshot struct {
	AssignmentID uint      `json:"assignment_id"`
	ActiveUsers  []uint    `json:"active_users"`
	Count        int       `json:"count"`
	Timestamp    time.Time `json:"timestamp"`
}

func (h *MonitorHandler) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	assignmentID, err := strconv.ParseUint(conn.Params("id"), 10, 64)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid assignment id"))
		return
	}

	if h.redis == nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "presence tracking disabled"))
		return
	}

	h.logger.Info().Uint64("assignment_id", assignmentID).Msg("live monitor connected")

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		snapshot, err := h.snapshot(context.Background(), uint(assignmentID))
		if err != nil {
			h.logger.Warn().Err(err).Msg("presence scan failed")
		} else if err := conn.WriteJSON(snapshot); err != nil {
			break
		}

		select {
		case <-done:
			h.logger.Info().Uint64("assignment_id", assignmentID).Msg("live monitor disconnected")
			return
		case <-ticker.C:
		}
	}
}

func (h *MonitorHandler) snapshot(ctx context.Context, assignmentID uint) (presenceSnapshot, error) {
	pattern := fmt.Sprintf("attempt:active:%d:*", assignmentID)

	users := make([]uint, 0)
	iter := h.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		parts := strings.Split(iter.Val(), ":")
		if len(parts) != 4 {
			continue
		}
		userID, err := strconv.ParseUint(parts[3], 10, 64)
		if err != nil {
			continue
		}
		users = append(users, uint(userID))
	}
	if err := iter.Err(); err != nil {
		return presenceSnapshot{}, err
	}

	observability.AttemptsActive().Set(float64(len(users)))

	return presenceSnapshot{
		AssignmentID: assignmentID,
		ActiveUsers:  users,
		Count:        len(users),
		Timestamp:    time.Now().UTC(),
	}, nil
}
