package entity

import (
	"strings"
	"time"
)

// TypingWindow is how long a typing signal stays valid without being
// refreshed. Readers must treat older entries as stale on their own, since
// the store never expires fields.
const TypingWindow = 3 * time.Second

// conversationIDSeparator never appears inside a Firebase uid, so two
// distinct participant pairs can never collide.
const conversationIDSeparator = "_"

// ConversationID derives the deterministic document id for the conversation
// between two users. The two uids are sorted ordinally and joined, so
// ConversationID(a, b) == ConversationID(b, a).
func ConversationID(uidA, uidB string) string {
	if uidA > uidB {
		uidA, uidB = uidB, uidA
	}
	return uidA + conversationIDSeparator + uidB
}

type Conversation struct {
	ID                 string               `json:"id" firestore:"id"`
	Participants       []string             `json:"participants" firestore:"participants"`
	ParticipantNames   map[string]string    `json:"participant_names" firestore:"participantNames"`
	ParticipantAvatars map[string]string    `json:"participant_avatars" firestore:"participantAvatars"`
	LastMessage        string               `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageTime    time.Time            `json:"last_message_time" firestore:"lastMessageTime"`
	LastMessageSender  string               `json:"last_message_sender,omitempty" firestore:"lastMessageSender,omitempty"`
	UnreadCount        map[string]int64     `json:"unread_count" firestore:"unreadCount"`
	TypingUsers        map[string]time.Time `json:"typing_users,omitempty" firestore:"typingUsers,omitempty"`
	TotalMessages      int64                `json:"total_messages" firestore:"totalMessages"`
	CreatedAt          time.Time            `json:"created_at" firestore:"createdAt"`
}

// OtherParticipant returns the counterpart of userID in a two-party
// conversation. ok is false when userID is not a participant or the
// conversation has no counterpart, which marks the document as corrupt for
// list purposes.
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	found := false
	other := ""
	for _, p := range c.Participants {
		if p == userID {
			found = true
		} else if other == "" {
			other = p
		}
	}
	if !found || other == "" {
		return "", false
	}
	return other, true
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the advisory unread counter for a participant. Missing
// entries read as zero.
func (c *Conversation) UnreadFor(userID string) int64 {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// ActiveTypists returns the participants other than userID whose typing
// signal is still fresh at the given instant. Entries older than
// TypingWindow are excluded even if the writer never cleared them, guarding
// against clients that crashed mid-typing.
func (c *Conversation) ActiveTypists(userID string, now time.Time) []string {
	var typists []string
	for uid, at := range c.TypingUsers {
		if uid == userID {
			continue
		}
		if now.Sub(at) < TypingWindow {
			typists = append(typists, uid)
		}
	}
	return typists
}

// SendPatch is the field-level merge applied to the conversation document
// when a message is appended. The repository writes lastMessageTime with the
// server clock and bumps totalMessages with an atomic increment; everything
// else is last-writer-wins.
type SendPatch struct {
	Participants       []string
	ParticipantNames   map[string]string
	ParticipantAvatars map[string]string
	LastMessage        string
	LastMessageSender  string
	UnreadCount        map[string]int64
	SetCreatedAt       bool
}

// ValidParticipantPair reports whether two uids can form a conversation.
func ValidParticipantPair(uidA, uidB string) bool {
	if uidA == "" || uidB == "" || uidA == uidB {
		return false
	}
	return !strings.Contains(uidA, conversationIDSeparator) && !strings.Contains(uidB, conversationIDSeparator)
}
