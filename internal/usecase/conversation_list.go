package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pairchat/internal/domain/entity"
)

const (
	unreadBadgeCap   = 99
	ownMessagePrefix = "You: "
	typingTextFormat = "%s is typing..."
)

// ConversationView is the derived, display-ready projection of one
// conversation for a given viewer.
type ConversationView struct {
	ID                string    `json:"id"`
	OtherUserID       string    `json:"other_user_id"`
	OtherUserName     string    `json:"other_user_name"`
	OtherUserAvatar   string    `json:"other_user_avatar,omitempty"`
	LastMessage       string    `json:"last_message,omitempty"`
	Preview           string    `json:"preview,omitempty"`
	LastMessageTime   time.Time `json:"last_message_time"`
	LastMessageSender string    `json:"last_message_sender,omitempty"`
	UnreadCount       int64     `json:"unread_count"`
	UnreadBadge       string    `json:"unread_badge,omitempty"`
	TypingText        string    `json:"typing_text,omitempty"`
	TotalMessages     int64     `json:"total_messages"`
}

type ConversationList struct {
	Items       []ConversationView `json:"items"`
	TotalUnread int64              `json:"total_unread"`
}

// BuildConversationList projects raw conversations into the viewer's ordered
// list. Conversations without a counterpart are suppressed as corrupt. Pure
// over its inputs; now drives typing staleness.
func BuildConversationList(userID string, conversations []*entity.Conversation, now time.Time) ConversationList {
	items := make([]ConversationView, 0, len(conversations))
	var totalUnread int64

	for _, conversation := range conversations {
		otherID, ok := conversation.OtherParticipant(userID)
		if !ok {
			continue
		}

		unread := conversation.UnreadFor(userID)
		totalUnread += unread

		view := ConversationView{
			ID:                conversation.ID,
			OtherUserID:       otherID,
			OtherUserName:     conversation.ParticipantNames[otherID],
			OtherUserAvatar:   conversation.ParticipantAvatars[otherID],
			LastMessage:       conversation.LastMessage,
			Preview:           conversation.LastMessage,
			LastMessageTime:   conversation.LastMessageTime,
			LastMessageSender: conversation.LastMessageSender,
			UnreadCount:       unread,
			UnreadBadge:       unreadBadge(unread),
			TotalMessages:     conversation.TotalMessages,
		}

		if conversation.LastMessageSender == userID && conversation.LastMessage != "" {
			view.Preview = ownMessagePrefix + conversation.LastMessage
		}

		if typists := conversation.ActiveTypists(userID, now); len(typists) > 0 {
			name := conversation.ParticipantNames[typists[0]]
			if name == "" {
				name = typists[0]
			}
			view.TypingText = fmt.Sprintf(typingTextFormat, name)
		}

		items = append(items, view)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastMessageTime.After(items[j].LastMessageTime)
	})

	return ConversationList{Items: items, TotalUnread: totalUnread}
}

func unreadBadge(unread int64) string {
	switch {
	case unread <= 0:
		return ""
	case unread > unreadBadgeCap:
		return fmt.Sprintf("%d+", unreadBadgeCap)
	default:
		return fmt.Sprintf("%d", unread)
	}
}

// ListConversations returns the viewer's aggregated conversation list.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string) (ConversationList, error) {
	conversations, err := uc.conversationRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return ConversationList{}, err
	}
	return BuildConversationList(userID, conversations, now()), nil
}

// TotalUnreadCount is the aggregate badge shown outside any one conversation.
func (uc *ChatUseCase) TotalUnreadCount(ctx context.Context, userID string) (int64, error) {
	list, err := uc.ListConversations(ctx, userID)
	if err != nil {
		return 0, err
	}
	return list.TotalUnread, nil
}
