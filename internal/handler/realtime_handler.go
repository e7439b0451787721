package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internship-approval-api/internal/service"
)

const defaultRealtimeKeepAlive = 30 * time.Second

// RealtimeHandler streams committed status transitions for one application over a websocket.
type RealtimeHandler struct {
	events    service.TransitionEventService
	keepAlive time.Duration
	logger    zerolog.Logger
}

// NewRealtimeHandler constructs the handler. A non-positive keepAlive uses the default ping interval.
func NewRealtimeHandler(events service.TransitionEventService, keepAlive time.Duration, logger zerolog.Logger) *RealtimeHandler {
	if keepAlive <= 0 {
		keepAlive = defaultRealtimeKeepAlive
	}
	return &RealtimeHandler{
		events:    events,
		keepAlive: keepAlive,
		logger:    logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route. It must be registered before any "/:id" route on the same group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := strconv.ParseUint(strings.TrimSpace(c.Query("application_id")), 10, 64); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "application_id required")
		}
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	parsed, err := strconv.ParseUint(strings.TrimSpace(conn.Query("application_id")), 10, 64)
	if err != nil || parsed == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "application_id required"))
		return
	}
	applicationID := uint(parsed)

	stream, cleanup := h.events.Subscribe(applicationID)
	defer cleanup()

	logger := h.logger.With().Uint("application_id", applicationID).Logger()
	logger.Info().Msg("realtime websocket connected")
	defer logger.Info().Msg("realtime websocket disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write transition event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-closed:
			return
		}
	}
}
