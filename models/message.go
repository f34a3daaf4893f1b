package models

import "time"

// Message is the only persisted entity of the messaging core. Sender,
// receiver, content and created_at are immutable after creation; only
// IsRead (false -> true, never back) and UpdatedAt may change.
type Message struct {
	ID           int       `json:"id"`
	SenderID     int       `json:"sender_id"`
	SenderRole   Role      `json:"sender_role"`
	ReceiverID   int       `json:"receiver_id"`
	ReceiverRole Role      `json:"receiver_role"`
	Content      string    `json:"content"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m Message) Sender() Identity {
	return Identity{ID: m.SenderID, Role: m.SenderRole}
}

func (m Message) Receiver() Identity {
	return Identity{ID: m.ReceiverID, Role: m.ReceiverRole}
}

// EnrichedMessage is a persisted message augmented with display metadata
// resolved from the profile directory before live delivery.
type EnrichedMessage struct {
	Message
	SenderName   string `json:"sender_name"`
	ReceiverName string `json:"receiver_name"`
}
