package models

import "time"

// Status is the delivery status of a message.
type Status string

const (
	StatusSent      Status = "Sent"
	StatusDelivered Status = "Delivered"
	StatusSeen      Status = "Seen"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// Advance returns the later of s and next. A status never moves backwards.
func (s Status) Advance(next Status) Status {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// AttachmentType distinguishes image and voice attachments.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "Image"
	AttachmentVoice AttachmentType = "Voice"
)

// Attachment is a file attached to a message.
type Attachment struct {
	ID      string         `json:"id,omitempty"`
	Type    AttachmentType `json:"fileType"`
	FileURL string         `json:"fileUrl"`
}

// Message represents a chat message.
type Message struct {
	ID               string       `json:"id"`
	Content          string       `json:"content"`
	Status           Status       `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	SenderID         string       `json:"senderId"`
	Sender           *UserSummary `json:"sender,omitempty"`
	ConversationID   string       `json:"conversationId"`
	RepliedMessageID *string      `json:"repliedMessageId"`
	RepliedMessage   *Message     `json:"repliedMessage"`
	Reactions        []Reaction   `json:"messageReactionUsers"`
	Attachments      []Attachment `json:"messageAttachments"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.RepliedMessage != nil {
		replied := m.RepliedMessage.Clone()
		out.RepliedMessage = &replied
	}
	return out
}

// SendMessageRequest is the payload of the SendMessage procedure.
type SendMessageRequest struct {
	SenderID         string       `json:"senderId"`
	ConversationID   string       `json:"conversationId"`
	Content          string       `json:"content"`
	RepliedMessageID *string      `json:"repliedMessageId,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

// UpdateStatusRequest is the payload of the UpdateMessageStatus procedure.
type UpdateStatusRequest struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}
