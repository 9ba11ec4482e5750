package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/pkg/errors"
)

// fakeConversationStore emulates the document store in memory: merge-writes
// touch only the fields in the patch, Delete is all-or-nothing, and a fake
// clock stands in for server timestamps so orderings are deterministic.
type fakeConversationStore struct {
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	clock         time.Time
	nextID        int
	deleteErr     error
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
		clock:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeConversationStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeConversationStore) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	conversation, ok := f.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conversation, nil
}

func (f *fakeConversationStore) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	var result []*entity.Conversation
	for _, conversation := range f.conversations {
		if conversation.HasParticipant(userID) {
			result = append(result, conversation)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastMessageTime.After(result[j].LastMessageTime)
	})
	return result, nil
}

func (f *fakeConversationStore) AppendMessage(ctx context.Context, conversationID string, message *entity.Message) error {
	f.nextID++
	ts := f.tick()

	message.ID = fmt.Sprintf("msg-%d", f.nextID)
	message.ConversationID = conversationID
	message.Timestamp = ts
	message.ReadBy = map[string]time.Time{message.SenderID: ts}
	message.Delivered = false

	f.messages[conversationID] = append(f.messages[conversationID], message)
	return nil
}

func (f *fakeConversationStore) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	all := f.messages[conversationID]
	newest := make([]*entity.Message, len(all))
	copy(newest, all)
	sort.Slice(newest, func(i, j int) bool {
		return newest[i].Timestamp.After(newest[j].Timestamp)
	})

	if offset >= len(newest) {
		return nil, int64(len(all)), nil
	}
	newest = newest[offset:]
	if limit > 0 && limit < len(newest) {
		newest = newest[:limit]
	}
	return newest, int64(len(all)), nil
}

func (f *fakeConversationStore) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	kept := f.messages[conversationID][:0]
	for _, message := range f.messages[conversationID] {
		if message.ID != messageID {
			kept = append(kept, message)
		}
	}
	f.messages[conversationID] = kept
	return nil
}

func (f *fakeConversationStore) MergeSendMetadata(ctx context.Context, conversationID string, patch entity.SendPatch) error {
	conversation, ok := f.conversations[conversationID]
	if !ok {
		conversation = &entity.Conversation{ID: conversationID}
		f.conversations[conversationID] = conversation
	}

	conversation.Participants = patch.Participants
	conversation.ParticipantNames = patch.ParticipantNames
	conversation.ParticipantAvatars = patch.ParticipantAvatars
	conversation.LastMessage = patch.LastMessage
	conversation.LastMessageSender = patch.LastMessageSender
	conversation.LastMessageTime = f.tick()
	conversation.TotalMessages++

	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int64)
	}
	for uid, n := range patch.UnreadCount {
		conversation.UnreadCount[uid] = n
	}

	if patch.SetCreatedAt && conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = f.clock
	}
	return nil
}

func (f *fakeConversationStore) ClearUnread(ctx context.Context, conversationID, readerID string) error {
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return nil
	}
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int64)
	}
	conversation.UnreadCount[readerID] = 0
	return nil
}

func (f *fakeConversationStore) StampReadReceipts(ctx context.Context, conversationID, readerID string) error {
	ts := f.tick()
	for _, message := range f.messages[conversationID] {
		if message.SenderID == readerID {
			continue
		}
		if _, seen := message.ReadBy[readerID]; seen {
			continue
		}
		message.ReadBy[readerID] = ts
		message.Delivered = true
	}
	return nil
}

func (f *fakeConversationStore) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	conversation, ok := f.conversations[conversationID]
	if !ok {
		if !typing {
			return nil
		}
		conversation = &entity.Conversation{ID: conversationID}
		f.conversations[conversationID] = conversation
	}

	if typing {
		if conversation.TypingUsers == nil {
			conversation.TypingUsers = make(map[string]time.Time)
		}
		conversation.TypingUsers[userID] = f.tick()
	} else {
		delete(conversation.TypingUsers, userID)
	}
	return nil
}

func (f *fakeConversationStore) Delete(ctx context.Context, conversationID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.conversations, conversationID)
	delete(f.messages, conversationID)
	return nil
}

func (f *fakeConversationStore) WatchByParticipant(ctx context.Context, userID string) (*repository.ConversationSubscription, error) {
	updates := make(chan []*entity.Conversation, 1)
	errs := make(chan error, 1)

	conversations, _ := f.ListByParticipant(ctx, userID)
	updates <- conversations

	return repository.NewConversationSubscription(updates, errs, func() {}), nil
}

type fakeUserStore struct {
	users map[string]*entity.User
}

func newFakeUserStore(users ...*entity.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]*entity.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (f *fakeUserStore) Create(ctx context.Context, user *entity.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (f *fakeUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := f.GetByUsername(ctx, username)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *entity.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) List(ctx context.Context, limit int) ([]*entity.User, error) {
	var result []*entity.User
	for _, user := range f.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
