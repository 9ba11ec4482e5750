package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"pairchat/internal/domain/entity"
	ws "pairchat/internal/infrastructure/websocket"
	"pairchat/pkg/errors"
)

func newChatFixture() (*ChatUseCase, *fakeConversationStore) {
	store := newFakeConversationStore()
	users := newFakeUserStore(
		&entity.User{ID: "alice", Username: "alice", DisplayName: "Alice", Email: "alice@example.com"},
		&entity.User{ID: "bob", Username: "bob", DisplayName: "Bob", Email: "bob@example.com"},
		&entity.User{ID: "carol", Username: "carol", DisplayName: "Carol", Email: "carol@example.com"},
	)
	return NewChatUseCase(store, users, ws.NewManager()), store
}

func TestSendMessageFirstSend(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	resp, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hello"})
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusSent, resp.ReadStatus)
	assert.Equal(t, "alice_bob", resp.ConversationID)

	conversation, err := store.GetByID(ctx, "alice_bob")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), conversation.UnreadFor("bob"))
	assert.Equal(t, int64(0), conversation.UnreadFor("alice"))
	assert.Equal(t, int64(1), conversation.TotalMessages)
	assert.Equal(t, "hello", conversation.LastMessage)
	assert.Equal(t, "alice", conversation.LastMessageSender)
	assert.ElementsMatch(t, []string{"alice", "bob"}, conversation.Participants)
	assert.False(t, conversation.CreatedAt.IsZero())

	// The sender reads their own message on send.
	messages := store.messages["alice_bob"]
	assert.Len(t, messages, 1)
	assert.Contains(t, messages[0].ReadBy, "alice")
	assert.NotContains(t, messages[0].ReadBy, "bob")
}

func TestSendMessageAlternating(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "one"})
	assert.NoError(t, err)
	_, err = uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "two"})
	assert.NoError(t, err)
	_, err = uc.SendMessage(ctx, "bob", SendMessageInput{ReceiverID: "alice", Text: "three"})
	assert.NoError(t, err)

	conversation, err := store.GetByID(ctx, "alice_bob")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), conversation.TotalMessages)
	assert.Equal(t, "three", conversation.LastMessage)
	assert.Equal(t, "bob", conversation.LastMessageSender)
	// Replying resets your own counter even without an explicit mark-read.
	assert.Equal(t, int64(0), conversation.UnreadFor("bob"))
	assert.Equal(t, int64(1), conversation.UnreadFor("alice"))
}

func TestSendMessageCreatedAtSetOnlyOnce(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "first"})
	assert.NoError(t, err)
	conversation, _ := store.GetByID(ctx, "alice_bob")
	created := conversation.CreatedAt

	_, err = uc.SendMessage(ctx, "bob", SendMessageInput{ReceiverID: "alice", Text: "second"})
	assert.NoError(t, err)
	conversation, _ = store.GetByID(ctx, "alice_bob")
	assert.Equal(t, created, conversation.CreatedAt)
}

func TestSendMessageRejectsInvalidInput(t *testing.T) {
	uc, _ := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: ""})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))

	_, err = uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "alice", Text: "hi me"})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))

	_, err = uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "ghost", Text: "anyone there"})
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestMarkConversationRead(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "one"})
	assert.NoError(t, err)
	_, err = uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "two"})
	assert.NoError(t, err)

	err = uc.MarkConversationRead(ctx, "bob", "alice_bob")
	assert.NoError(t, err)

	conversation, _ := store.GetByID(ctx, "alice_bob")
	assert.Equal(t, int64(0), conversation.UnreadFor("bob"))

	for _, message := range store.messages["alice_bob"] {
		assert.Contains(t, message.ReadBy, "bob")
		assert.Equal(t, entity.StatusRead, message.ReadStatusFor("alice"))
	}
}

func TestMarkConversationReadMissingIsNoop(t *testing.T) {
	uc, _ := newChatFixture()

	err := uc.MarkConversationRead(context.Background(), "bob", "alice_bob")
	assert.NoError(t, err)
}

func TestMarkConversationReadForbiddenForOutsider(t *testing.T) {
	uc, _ := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "private"})
	assert.NoError(t, err)

	err = uc.MarkConversationRead(ctx, "carol", "alice_bob")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

// Full exchange: alice says hello, bob replies, alice marks read.
func TestExchangeThenRead(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hello"})
	assert.NoError(t, err)
	_, err = uc.SendMessage(ctx, "bob", SendMessageInput{ReceiverID: "alice", Text: "hi"})
	assert.NoError(t, err)
	err = uc.MarkConversationRead(ctx, "alice", "alice_bob")
	assert.NoError(t, err)

	conversation, _ := store.GetByID(ctx, "alice_bob")
	assert.Equal(t, int64(0), conversation.UnreadFor("alice"))
	assert.Equal(t, int64(0), conversation.UnreadFor("bob"))
	assert.Equal(t, int64(2), conversation.TotalMessages)
	assert.Equal(t, "hi", conversation.LastMessage)

	var hello, hi *entity.Message
	for _, message := range store.messages["alice_bob"] {
		switch message.Text {
		case "hello":
			hello = message
		case "hi":
			hi = message
		}
	}
	// Bob never marked read, so alice's message still shows as sent to her.
	assert.Equal(t, entity.StatusSent, hello.ReadStatusFor("alice"))
	assert.Equal(t, entity.StatusRead, hi.ReadStatusFor("bob"))
}

func TestListMessagesReportsViewerStatus(t *testing.T) {
	uc, _ := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hello"})
	assert.NoError(t, err)

	responses, total, err := uc.ListMessages(ctx, "bob", "alice_bob", 50, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, responses, 1)
	assert.Equal(t, entity.StatusRead, responses[0].ReadStatus)

	responses, _, err = uc.ListMessages(ctx, "alice", "alice_bob", 50, 0)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusSent, responses[0].ReadStatus)

	_, _, err = uc.ListMessages(ctx, "carol", "alice_bob", 50, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestDeleteConversationRemovesEverything(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "going away"})
	assert.NoError(t, err)

	err = uc.DeleteConversation(ctx, "bob", "alice_bob")
	assert.NoError(t, err)

	_, err = store.GetByID(ctx, "alice_bob")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Empty(t, store.messages["alice_bob"])

	// Deleting again is a silent no-op.
	assert.NoError(t, uc.DeleteConversation(ctx, "bob", "alice_bob"))
}

func TestDeleteConversationAllOrNothing(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "keep me"})
	assert.NoError(t, err)

	store.deleteErr = errors.Transport("batch commit failed", nil)
	err = uc.DeleteConversation(ctx, "alice", "alice_bob")
	assert.True(t, errors.Is(err, "TRANSPORT_ERROR"))

	// A failed batch leaves both the document and the log untouched.
	conversation, getErr := store.GetByID(ctx, "alice_bob")
	assert.NoError(t, getErr)
	assert.Equal(t, int64(1), conversation.TotalMessages)
	assert.Len(t, store.messages["alice_bob"], 1)
}

func TestDeleteConversationForbiddenForOutsider(t *testing.T) {
	uc, _ := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "ours"})
	assert.NoError(t, err)

	err = uc.DeleteConversation(ctx, "carol", "alice_bob")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSetTypingLifecycle(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hey"})
	assert.NoError(t, err)

	assert.NoError(t, uc.SetTyping(ctx, "alice", "alice_bob", true))
	conversation, _ := store.GetByID(ctx, "alice_bob")
	assert.Contains(t, conversation.TypingUsers, "alice")
	assert.Equal(t, []string{"alice"}, conversation.ActiveTypists("bob", store.clock))

	assert.NoError(t, uc.SetTyping(ctx, "alice", "alice_bob", false))
	conversation, _ = store.GetByID(ctx, "alice_bob")
	assert.NotContains(t, conversation.TypingUsers, "alice")
}

func TestClearTypingOnTeardown(t *testing.T) {
	uc, store := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hey"})
	assert.NoError(t, err)
	assert.NoError(t, uc.SetTyping(ctx, "alice", "alice_bob", true))

	uc.ClearTypingOnTeardown(ctx, "alice", []string{"alice_bob"})

	conversation, _ := store.GetByID(ctx, "alice_bob")
	assert.NotContains(t, conversation.TypingUsers, "alice")
}

func TestGetConversationEnforcesMembership(t *testing.T) {
	uc, _ := newChatFixture()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "alice", SendMessageInput{ReceiverID: "bob", Text: "hey"})
	assert.NoError(t, err)

	conversation, err := uc.GetConversation(ctx, "alice", "alice_bob")
	assert.NoError(t, err)
	assert.Equal(t, "alice_bob", conversation.ID)

	_, err = uc.GetConversation(ctx, "carol", "alice_bob")
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = uc.GetConversation(ctx, "alice", "alice_carol")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}
