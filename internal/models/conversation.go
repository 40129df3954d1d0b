package models

import "time"

// ConversationType is either a two-party or a group conversation.
type ConversationType string

const (
	ConversationPersonal ConversationType = "Personal"
	ConversationGroup    ConversationType = "Group"
)

// Conversation groups messages and caches its newest one for list previews.
type Conversation struct {
	ID            string           `json:"id"`
	Type          ConversationType `json:"type"`
	Name          string           `json:"conversationName,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	Participants  []Participant    `json:"conversationUsers"`
	NewestMessage *Message         `json:"newestMessage"`
}

// Participant is a member record of a conversation.
type Participant struct {
	UserID   string       `json:"userId"`
	Nickname string       `json:"nickname,omitempty"`
	User     *UserSummary `json:"user,omitempty"`
}

// Presence is a participant's activity state.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAway    Presence = "away"
)

// UserSummary is the slice of a user profile the messaging core cares about.
type UserSummary struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	Presence     Presence   `json:"presence,omitempty"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
}

// DisplayName joins first and last name.
func (u UserSummary) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Unread reports whether the conversation's newest message still needs the
// attention of userID.
func (c Conversation) Unread(userID string) bool {
	if c.NewestMessage == nil {
		return false
	}
	return c.NewestMessage.SenderID != userID && c.NewestMessage.Status != StatusSeen
}
