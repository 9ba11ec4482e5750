package entity

import "time"

type ReadStatus string

const (
	StatusSent      ReadStatus = "sent"
	StatusDelivered ReadStatus = "delivered"
	StatusRead      ReadStatus = "read"
)

type Message struct {
	ID             string               `json:"id" firestore:"id"`
	ConversationID string               `json:"conversation_id" firestore:"conversationId"`
	Text           string               `json:"text" firestore:"text"`
	SenderID       string               `json:"sender_id" firestore:"senderId"`
	SenderName     string               `json:"sender_name" firestore:"senderName"`
	Timestamp      time.Time            `json:"timestamp" firestore:"timestamp"`
	ReadBy         map[string]time.Time `json:"read_by" firestore:"readBy"`
	Delivered      bool                 `json:"delivered" firestore:"delivered"`
}

// ReadStatusFor derives the tri-state receipt shown to a viewer. The result
// is monotonic per message: sent, then delivered, then read, never backwards.
// A message someone else sent is always read from the viewer's side, since
// they are looking at it.
func (m *Message) ReadStatusFor(viewerID string) ReadStatus {
	if m.SenderID != viewerID {
		return StatusRead
	}
	for uid := range m.ReadBy {
		if uid != viewerID {
			return StatusRead
		}
	}
	if m.Delivered {
		return StatusDelivered
	}
	return StatusSent
}
