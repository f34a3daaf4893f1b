package models

import "time"

// ConversationSummary is one row of the conversation list: the most recent
// message exchanged with a counterpart plus how many of their messages the
// caller has not read yet. Conversations are derived from the message log,
// they have no stored lifecycle of their own.
type ConversationSummary struct {
	CounterpartID    int       `json:"counterpart_id"`
	CounterpartRole  Role      `json:"counterpart_role"`
	CounterpartName  string    `json:"counterpart_name"`
	CounterpartEmail string    `json:"counterpart_email"`
	LastMessage      string    `json:"last_message"`
	LastMessageTime  time.Time `json:"last_message_time"`
	UnreadCount      int       `json:"unread_count"`
}

func (c ConversationSummary) Counterpart() Identity {
	return Identity{ID: c.CounterpartID, Role: c.CounterpartRole}
}
