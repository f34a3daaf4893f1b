package services

import (
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"campus-chat/config"
	"campus-chat/models"
	"campus-chat/repository"
	"campus-chat/utils"
)

// MessageBroadcaster fans a persisted message out to every live connection
// subscribed to its conversation key. Interface lives here to avoid an
// import cycle with the ws package.
type MessageBroadcaster interface {
	BroadcastMessage(conversationKey string, msg models.EnrichedMessage)
}

// MessageService is the single ingress for both the request/response path
// and the live transport: both call Send, so durability and fanout behave
// identically regardless of where a message came from.
type MessageService struct {
	msgs     repository.MessageRepository
	profiles repository.ProfileRepository
	hub      MessageBroadcaster
	config   *config.Config
	log      *slog.Logger
}

func NewMessageService(mr repository.MessageRepository, pr repository.ProfileRepository, hub MessageBroadcaster, cfg *config.Config, log *slog.Logger) *MessageService {
	return &MessageService{msgs: mr, profiles: pr, hub: hub, config: cfg, log: log}
}

// Send validates, appends, then enriches and fans out. Store durability and
// live delivery are decoupled: once the append succeeds the send succeeds,
// even if enrichment or fanout fails afterwards. The counterpart will still
// see the message on its next history fetch.
func (s *MessageService) Send(sender, receiver models.Identity, content string) (*models.EnrichedMessage, error) {
	if !receiver.Valid() {
		return nil, fmt.Errorf("%w: receiver identity is required", ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(content) > s.config.MaxMessageLength {
		return nil, fmt.Errorf("%w: message too long (max %d characters)", ErrValidation, s.config.MaxMessageLength)
	}

	saved, err := s.msgs.Append(sender, receiver, content)
	if err != nil {
		return nil, err
	}

	enriched, err := s.enrich(*saved)
	if err != nil {
		// The append already succeeded; the message is durable and will
		// appear on the next history fetch. Skip live delivery only.
		s.log.Warn("live delivery skipped",
			"message_id", saved.ID,
			"conversation", utils.ConversationKey(sender, receiver),
			"error", err)
		return &models.EnrichedMessage{Message: *saved}, nil
	}

	s.hub.BroadcastMessage(utils.ConversationKey(sender, receiver), enriched)
	return &enriched, nil
}

// History returns the full ordered log between caller and counterpart and,
// as a side effect, marks the counterpart's messages to the caller as read.
// Fetching history is the implicit read acknowledgement.
func (s *MessageService) History(caller, counterpart models.Identity) ([]models.Message, error) {
	if !counterpart.Valid() {
		return nil, fmt.Errorf("%w: counterpart identity is required", ErrValidation)
	}

	msgs, err := s.msgs.History(caller, counterpart)
	if err != nil {
		return nil, err
	}

	if err := s.msgs.MarkRead(caller, counterpart); err != nil {
		// Read-marking is an acknowledgement, not part of the fetch; the
		// flags stay unread and will be flipped on the next fetch.
		s.log.Warn("mark read on fetch failed",
			"caller", caller.String(), "counterpart", counterpart.String(), "error", err)
	}
	return msgs, nil
}

// ListConversations returns one summary per counterpart, newest first, with
// display metadata resolved from the profile directory.
func (s *MessageService) ListConversations(caller models.Identity) ([]models.ConversationSummary, error) {
	summaries, err := s.msgs.ListByParticipant(caller)
	if err != nil {
		return nil, err
	}

	return lo.Map(summaries, func(cs models.ConversationSummary, _ int) models.ConversationSummary {
		p, err := s.profiles.FindByIdentity(cs.Counterpart())
		if err != nil {
			s.log.Warn("counterpart enrichment failed",
				"counterpart", cs.Counterpart().String(), "error", err)
			cs.CounterpartName = "Unknown User"
			return cs
		}
		cs.CounterpartName = p.Name
		cs.CounterpartEmail = p.Email
		return cs
	}), nil
}

// MarkRead is the explicit variant of the read acknowledgement, usable
// without fetching history (e.g. clearing a badge).
func (s *MessageService) MarkRead(caller, counterpart models.Identity) error {
	if !counterpart.Valid() {
		return fmt.Errorf("%w: counterpart identity is required", ErrValidation)
	}
	return s.msgs.MarkRead(caller, counterpart)
}

func (s *MessageService) enrich(msg models.Message) (models.EnrichedMessage, error) {
	sender, err := s.profiles.FindByIdentity(msg.Sender())
	if err != nil {
		return models.EnrichedMessage{}, fmt.Errorf("enrich sender: %w", err)
	}
	receiver, err := s.profiles.FindByIdentity(msg.Receiver())
	if err != nil {
		return models.EnrichedMessage{}, fmt.Errorf("enrich receiver: %w", err)
	}
	return models.EnrichedMessage{
		Message:      msg,
		SenderName:   sender.Name,
		ReceiverName: receiver.Name,
	}, nil
}
