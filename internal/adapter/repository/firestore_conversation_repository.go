package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/pkg/errors"
	"pairchat/pkg/logger"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) conversationRef(id string) *firestore.DocumentRef {
	return r.client.Collection(conversationsCollection).Doc(id)
}

func (r *firestoreConversationRepository) messageRef(conversationID, messageID string) *firestore.DocumentRef {
	return r.conversationRef(conversationID).Collection(messagesCollection).Doc(messageID)
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.conversationRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Transport("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID

	return &conversation, nil
}

func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	query := r.client.Collection(conversationsCollection).
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, errors.Transport("Failed to fetch conversations", err)
	}

	var conversations []*entity.Conversation
	for _, doc := range docs {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			logger.Warn("Skipping malformed conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversation.ID = doc.Ref.ID
		conversations = append(conversations, &conversation)
	}

	return conversations, nil
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, conversationID string, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.ConversationID = conversationID

	// The server clock stamps both the message and the sender's implicit
	// self-read entry, keeping ordering monotonic across clients.
	fields := map[string]interface{}{
		"id":             message.ID,
		"conversationId": conversationID,
		"text":           message.Text,
		"senderId":       message.SenderID,
		"senderName":     message.SenderName,
		"timestamp":      firestore.ServerTimestamp,
		"readBy": map[string]interface{}{
			message.SenderID: firestore.ServerTimestamp,
		},
		"delivered": false,
	}

	if _, err := r.messageRef(conversationID, message.ID).Set(ctx, fields); err != nil {
		return errors.Transport("Failed to append message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.conversationRef(conversationID).Collection(messagesCollection).
		OrderBy("timestamp", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while counting messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Transport("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, 0, errors.Transport("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message %s in conversation %s: %v", doc.Ref.ID, conversationID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreConversationRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if _, err := r.messageRef(conversationID, messageID).Delete(ctx); err != nil {
		return errors.Transport("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) MergeSendMetadata(ctx context.Context, conversationID string, patch entity.SendPatch) error {
	fields := map[string]interface{}{
		"participants":       patch.Participants,
		"participantNames":   patch.ParticipantNames,
		"participantAvatars": patch.ParticipantAvatars,
		"lastMessage":        patch.LastMessage,
		"lastMessageSender":  patch.LastMessageSender,
		"lastMessageTime":    firestore.ServerTimestamp,
		"unreadCount":        patch.UnreadCount,
		"totalMessages":      firestore.Increment(1),
	}
	if patch.SetCreatedAt {
		fields["createdAt"] = firestore.ServerTimestamp
	}

	if _, err := r.conversationRef(conversationID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return errors.Transport("Failed to merge conversation metadata", err)
	}

	return nil
}

func (r *firestoreConversationRepository) ClearUnread(ctx context.Context, conversationID, readerID string) error {
	fields := map[string]interface{}{
		"unreadCount": map[string]interface{}{
			readerID: 0,
		},
	}

	if _, err := r.conversationRef(conversationID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return errors.Transport("Failed to clear unread count", err)
	}

	return nil
}

func (r *firestoreConversationRepository) StampReadReceipts(ctx context.Context, conversationID, readerID string) error {
	docs, err := r.conversationRef(conversationID).Collection(messagesCollection).Documents(ctx).GetAll()
	if err != nil {
		return errors.Transport("Failed to fetch messages for read receipts", err)
	}

	batch := r.client.Batch()
	pending := 0
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			continue
		}
		if message.SenderID == readerID {
			continue
		}
		if _, seen := message.ReadBy[readerID]; seen {
			continue
		}
		batch.Update(doc.Ref, []firestore.Update{
			{FieldPath: firestore.FieldPath{"readBy", readerID}, Value: firestore.ServerTimestamp},
			{Path: "delivered", Value: true},
		})
		pending++
	}

	if pending == 0 {
		return nil
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.Transport("Failed to stamp read receipts", err)
	}

	return nil
}

func (r *firestoreConversationRepository) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	if typing {
		fields := map[string]interface{}{
			"typingUsers": map[string]interface{}{
				userID: firestore.ServerTimestamp,
			},
		}
		if _, err := r.conversationRef(conversationID).Set(ctx, fields, firestore.MergeAll); err != nil {
			return errors.Transport("Failed to set typing status", err)
		}
		return nil
	}

	// Stopped typing removes the field outright, so readers never have to
	// compare clocks against a tombstone value.
	_, err := r.conversationRef(conversationID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"typingUsers", userID}, Value: firestore.Delete},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return errors.Transport("Failed to clear typing status", err)
	}

	return nil
}

func (r *firestoreConversationRepository) Delete(ctx context.Context, conversationID string) error {
	refs := r.conversationRef(conversationID).Collection(messagesCollection).Select().Documents(ctx)

	// One batch covering the whole log plus the conversation document, so a
	// partial failure leaves everything intact.
	batch := r.client.Batch()
	for {
		doc, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Transport("Failed to collect messages for deletion", err)
		}
		batch.Delete(doc.Ref)
	}
	batch.Delete(r.conversationRef(conversationID))

	if _, err := batch.Commit(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return errors.Transport("Failed to delete conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) WatchByParticipant(ctx context.Context, userID string) (*repository.ConversationSubscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	query := r.client.Collection(conversationsCollection).
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc)

	snapshots := query.Snapshots(watchCtx)

	updates := make(chan []*entity.Conversation, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errs)
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled {
					return
				}
				errs <- errors.Transport("Conversation subscription failed", err)
				return
			}

			var conversations []*entity.Conversation
			for {
				doc, err := snap.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					errs <- errors.Transport("Conversation subscription failed", err)
					return
				}
				var conversation entity.Conversation
				if err := doc.DataTo(&conversation); err != nil {
					logger.Warn("Skipping malformed conversation %s in snapshot: %v", doc.Ref.ID, err)
					continue
				}
				conversation.ID = doc.Ref.ID
				conversations = append(conversations, &conversation)
			}

			// Latest snapshot wins when the consumer lags.
			select {
			case updates <- conversations:
			default:
				select {
				case <-updates:
				default:
				}
				updates <- conversations
			}
		}
	}()

	stop := func() {
		cancel()
		snapshots.Stop()
	}

	return repository.NewConversationSubscription(updates, errs, stop), nil
}
