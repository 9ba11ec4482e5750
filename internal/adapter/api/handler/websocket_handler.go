package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"pairchat/internal/adapter/api/middleware"
	ws "pairchat/internal/infrastructure/websocket"
	"pairchat/internal/usecase"
	"pairchat/pkg/logger"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	manager     *ws.Manager
	auth        *middleware.AuthMiddleware
	chatUseCase *usecase.ChatUseCase
}

func NewWebSocketHandler(manager *ws.Manager, auth *middleware.AuthMiddleware, chatUseCase *usecase.ChatUseCase) *WebSocketHandler {
	return &WebSocketHandler{
		manager:     manager,
		auth:        auth,
		chatUseCase: chatUseCase,
	}
}

// clientEvent is the envelope for everything a client sends over the socket.
type clientEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// Handle upgrades the connection, starts the live conversation-list
// subscription for the user, and pumps events both ways until the socket
// closes.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token is required")
	}

	userID, err := h.auth.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := ws.NewClient(userID, conn)
	h.manager.Register <- client

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	go h.pushConversationList(watchCtx, client)
	go client.WritePump()

	// Blocks until the connection drops.
	client.ReadPump(h.manager, h.dispatch)

	cancelWatch()

	// A dropped connection must not leave dangling typing entries behind.
	teardownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.chatUseCase.ClearTypingOnTeardown(teardownCtx, userID, client.OpenRooms())

	return nil
}

// pushConversationList forwards every store snapshot as an aggregated list
// event until the subscription or connection ends.
func (h *WebSocketHandler) pushConversationList(ctx context.Context, client *ws.Client) {
	sub, err := h.chatUseCase.WatchConversations(ctx, client.UserID)
	if err != nil {
		logger.Error("Failed to open conversation watch for %s: %v", client.UserID, err)
		return
	}
	defer sub.Close()

	for {
		select {
		case conversations, ok := <-sub.Updates():
			if !ok {
				return
			}
			list := usecase.BuildConversationList(client.UserID, conversations, time.Now())
			payload, err := json.Marshal(map[string]interface{}{
				"type": "conversation_list",
				"data": list,
			})
			if err != nil {
				continue
			}
			select {
			case client.Send <- payload:
			default:
			}

		case err, ok := <-sub.Errs():
			if !ok {
				return
			}
			logger.Error("Conversation watch for %s broke: %v", client.UserID, err)
			payload, _ := json.Marshal(map[string]interface{}{
				"type":  "subscription_error",
				"error": "conversation list subscription failed",
			})
			select {
			case client.Send <- payload:
			default:
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(client *ws.Client, payload []byte) {
	var event clientEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("Ignoring malformed websocket event from %s: %v", client.UserID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case "join":
		h.manager.JoinRoom(event.ConversationID, client)
		client.TrackRoom(event.ConversationID, true)

	case "leave":
		h.manager.LeaveRoom(event.ConversationID, client)
		client.TrackRoom(event.ConversationID, false)
		h.chatUseCase.SetTyping(ctx, client.UserID, event.ConversationID, false)

	case "typing":
		h.chatUseCase.SetTyping(ctx, client.UserID, event.ConversationID, event.IsTyping)

	case "mark_read":
		if err := h.chatUseCase.MarkConversationRead(ctx, client.UserID, event.ConversationID); err != nil {
			logger.Warn("mark_read over websocket failed for %s: %v", client.UserID, err)
		}

	default:
		logger.Debug("Unknown websocket event type %q from %s", event.Type, client.UserID)
	}
}
