package repository

import (
	"context"

	"pairchat/internal/domain/entity"
)

// ConversationRepository is the boundary to the document store. Every method
// maps onto one transport primitive: merge-write, atomic batch, atomic
// increment, or an ordered snapshot subscription.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error)

	// AppendMessage adds a message to the conversation's log. The store
	// assigns the id when empty and stamps Timestamp with the server clock.
	AppendMessage(ctx context.Context, conversationID string, message *entity.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error

	// MergeSendMetadata applies the post-send conversation patch as a single
	// field-level merge-write, bumping totalMessages atomically.
	MergeSendMetadata(ctx context.Context, conversationID string, patch entity.SendPatch) error

	// ClearUnread zeroes the reader's unread counter, touching no other field.
	ClearUnread(ctx context.Context, conversationID, readerID string) error

	// StampReadReceipts marks every message not authored by readerID and not
	// yet read by them, in one atomic batch.
	StampReadReceipts(ctx context.Context, conversationID, readerID string) error

	// SetTyping merge-sets the user's typing timestamp, or removes the entry
	// entirely when typing is false.
	SetTyping(ctx context.Context, conversationID, userID string, typing bool) error

	// Delete removes the conversation document and its whole message log in
	// one all-or-nothing batch. Deleting an absent conversation is a no-op.
	Delete(ctx context.Context, conversationID string) error

	// WatchByParticipant opens a live subscription over the user's
	// conversations, ordered by last message time descending. The caller owns
	// the handle and must Close it.
	WatchByParticipant(ctx context.Context, userID string) (*ConversationSubscription, error)
}

// ConversationSubscription is an explicit handle over a live store
// subscription. Data and errors travel on separate channels so consumers can
// tell "no data yet" from "subscription broken".
type ConversationSubscription struct {
	updates <-chan []*entity.Conversation
	errs    <-chan error
	stop    func()
}

func NewConversationSubscription(updates <-chan []*entity.Conversation, errs <-chan error, stop func()) *ConversationSubscription {
	return &ConversationSubscription{updates: updates, errs: errs, stop: stop}
}

func (s *ConversationSubscription) Updates() <-chan []*entity.Conversation {
	return s.updates
}

func (s *ConversationSubscription) Errs() <-chan error {
	return s.errs
}

// Close tears the subscription down. Safe to call more than once.
func (s *ConversationSubscription) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}
