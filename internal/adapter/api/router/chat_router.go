package router

import (
	"github.com/labstack/echo/v4"

	"pairchat/internal/adapter/api/handler"
	"pairchat/internal/adapter/api/middleware"
)

func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	// Sending is addressed by receiver; the conversation id is derived.
	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)
	messageGroup.POST("", chatHandler.SendMessage)

	conversationGroup := e.Group("/v1/conversations")
	conversationGroup.Use(authMiddleware.Authenticate)

	conversationGroup.GET("", chatHandler.ListConversations)
	conversationGroup.GET("/unread-total", chatHandler.TotalUnread)
	conversationGroup.GET("/:id", chatHandler.GetConversation)
	conversationGroup.DELETE("/:id", chatHandler.DeleteConversation)
	conversationGroup.PUT("/:id/read", chatHandler.MarkRead)
	conversationGroup.PUT("/:id/typing", chatHandler.SetTyping)

	conversationGroup.GET("/:id/messages", chatHandler.ListMessages)
	conversationGroup.DELETE("/:id/messages/:messageId", chatHandler.DeleteMessage)
}
