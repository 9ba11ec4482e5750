package usecase

import (
	"context"
	"encoding/json"
	"time"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/internal/infrastructure/ratelimit"
	ws "pairchat/internal/infrastructure/websocket"
	"pairchat/pkg/errors"
	"pairchat/pkg/logger"
)

type ChatUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	wsManager        *ws.Manager
	rateLimiter      *ratelimit.RateLimiter
}

func NewChatUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	wsManager *ws.Manager,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		wsManager:        wsManager,
		rateLimiter:      rateLimiter,
	}
}

type SendMessageInput struct {
	ReceiverID string
	Text       string
}

type MessageResponse struct {
	*entity.Message
	ReadStatus entity.ReadStatus `json:"read_status"`
}

// SendMessage appends a message to the pair's conversation and merges the
// denormalized metadata. The unread counter for the receiver is a
// read-then-write and may under-count under concurrent sends; the message
// log itself is authoritative and never loses a write.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	if input.Text == "" {
		return nil, errors.Validation("Message text must not be empty", nil)
	}
	if !entity.ValidParticipantPair(senderID, input.ReceiverID) {
		return nil, errors.Validation("Sender and receiver must be two distinct users", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		logger.Error("SendMessage: sender %s not found: %v", senderID, err)
		return nil, errors.NotFound("Sender", err)
	}
	receiver, err := uc.userRepo.GetByID(ctx, input.ReceiverID)
	if err != nil {
		logger.Error("SendMessage: receiver %s not found: %v", input.ReceiverID, err)
		return nil, errors.NotFound("Receiver", err)
	}

	conversationID := entity.ConversationID(senderID, input.ReceiverID)

	message := &entity.Message{
		Text:       input.Text,
		SenderID:   senderID,
		SenderName: sender.DisplayName,
	}
	if err := uc.conversationRepo.AppendMessage(ctx, conversationID, message); err != nil {
		logger.Error("SendMessage: failed to append message to %s: %v", conversationID, err)
		return nil, err
	}

	// A missing conversation reads as all-zero defaults rather than erroring.
	absent := false
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, "NOT_FOUND") {
			return nil, err
		}
		absent = true
		conversation = &entity.Conversation{}
	}

	unread := make(map[string]int64, 2)
	for uid, n := range conversation.UnreadCount {
		unread[uid] = n
	}
	unread[input.ReceiverID]++
	// Sending counts as having read up through your own message.
	unread[senderID] = 0

	patch := entity.SendPatch{
		Participants: []string{senderID, input.ReceiverID},
		ParticipantNames: map[string]string{
			senderID:         sender.DisplayName,
			input.ReceiverID: receiver.DisplayName,
		},
		ParticipantAvatars: map[string]string{
			senderID:         sender.PhotoURL,
			input.ReceiverID: receiver.PhotoURL,
		},
		LastMessage:       input.Text,
		LastMessageSender: senderID,
		UnreadCount:       unread,
		SetCreatedAt:      absent,
	}
	if err := uc.conversationRepo.MergeSendMetadata(ctx, conversationID, patch); err != nil {
		logger.Error("SendMessage: failed to merge metadata for %s: %v", conversationID, err)
		return nil, err
	}

	uc.notifyParticipants(conversationID, []string{input.ReceiverID}, map[string]interface{}{
		"type":            "new_message",
		"conversation_id": conversationID,
		"message":         message,
		"sender_name":     sender.DisplayName,
	})

	return &MessageResponse{
		Message:    message,
		ReadStatus: message.ReadStatusFor(senderID),
	}, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return conversation, nil
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*MessageResponse, int64, error) {
	if _, err := uc.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, 0, err
	}

	messages, total, err := uc.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, &MessageResponse{
			Message:    message,
			ReadStatus: message.ReadStatusFor(userID),
		})
	}

	return responses, total, nil
}

// MarkConversationRead zeroes the reader's unread counter and stamps read
// receipts on every message they had not seen. The two halves are
// best-effort and independent: a failed receipt batch never rolls back the
// counter reset, and neither failure is surfaced to the caller.
func (uc *ChatUseCase) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil
		}
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}

	if err := uc.conversationRepo.ClearUnread(ctx, conversationID, userID); err != nil {
		logger.Warn("MarkConversationRead: failed to clear unread for %s in %s: %v", userID, conversationID, err)
	}
	if err := uc.conversationRepo.StampReadReceipts(ctx, conversationID, userID); err != nil {
		logger.Warn("MarkConversationRead: failed to stamp receipts for %s in %s: %v", userID, conversationID, err)
	}

	if other, ok := conversation.OtherParticipant(userID); ok {
		uc.notifyParticipants(conversationID, []string{other}, map[string]interface{}{
			"type":            "read_receipt",
			"conversation_id": conversationID,
			"reader_id":       userID,
		})
	}

	return nil
}

// SetTyping publishes or clears the user's typing signal. Best-effort:
// failures are logged and swallowed, and consumers expire stale entries on
// their own after TypingWindow.
func (uc *ChatUseCase) SetTyping(ctx context.Context, userID, conversationID string, typing bool) error {
	if typing {
		if allowed, _ := uc.rateLimiter.Allow(userID, "typing"); !allowed {
			return nil
		}
	}

	if err := uc.conversationRepo.SetTyping(ctx, conversationID, userID, typing); err != nil {
		logger.Warn("SetTyping: failed for %s in %s: %v", userID, conversationID, err)
		return nil
	}

	uc.wsManager.SendToRoom(conversationID, mustJSON(map[string]interface{}{
		"type":            "typing_indicator",
		"conversation_id": conversationID,
		"user_id":         userID,
		"is_typing":       typing,
	}), userID)

	return nil
}

// DeleteConversation removes the conversation and its entire message log in
// one atomic batch. Either participant may do this; it is irreversible.
func (uc *ChatUseCase) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil
		}
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}

	if err := uc.conversationRepo.Delete(ctx, conversationID); err != nil {
		return err
	}

	if other, ok := conversation.OtherParticipant(userID); ok {
		uc.notifyParticipants(conversationID, []string{other}, map[string]interface{}{
			"type":            "conversation_deleted",
			"conversation_id": conversationID,
			"deleted_by":      userID,
		})
	}

	return nil
}

func (uc *ChatUseCase) DeleteMessage(ctx context.Context, userID, conversationID, messageID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}

	return uc.conversationRepo.DeleteMessage(ctx, conversationID, messageID)
}

// WatchConversations opens a live subscription for the websocket layer. The
// caller owns the returned handle and must Close it on teardown.
func (uc *ChatUseCase) WatchConversations(ctx context.Context, userID string) (*repository.ConversationSubscription, error) {
	return uc.conversationRepo.WatchByParticipant(ctx, userID)
}

// ClearTypingOnTeardown is called when a client disconnects so a dropped
// connection does not leave a dangling typing entry behind.
func (uc *ChatUseCase) ClearTypingOnTeardown(ctx context.Context, userID string, conversationIDs []string) {
	for _, conversationID := range conversationIDs {
		if err := uc.conversationRepo.SetTyping(ctx, conversationID, userID, false); err != nil {
			logger.Warn("ClearTypingOnTeardown: failed for %s in %s: %v", userID, conversationID, err)
		}
	}
}

func (uc *ChatUseCase) notifyParticipants(conversationID string, userIDs []string, event map[string]interface{}) {
	payload := mustJSON(event)
	uc.wsManager.SendToRoom(conversationID, payload, "")
	for _, uid := range userIDs {
		uc.wsManager.SendToUser(uid, payload)
	}
}

func mustJSON(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal websocket payload: %v", err)
		return []byte("{}")
	}
	return payload
}

// now is split out so list aggregation can be driven by a simulated clock in
// tests while production code uses the wall clock.
var now = time.Now
