package utils

import (
	"fmt"

	"campus-chat/models"
)

// ConversationKey derives the stable identifier of the unordered pair of
// participants. Symmetric: ConversationKey(a, b) == ConversationKey(b, a).
// The key is role-qualified, so identities sharing a numeric id across
// roles never collide into the same conversation.
func ConversationKey(a, b models.Identity) string {
	if b.ID < a.ID || (b.ID == a.ID && b.Role < a.Role) {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%s|%d:%s", a.ID, a.Role, b.ID, b.Role)
}
