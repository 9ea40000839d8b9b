// Package thread derives per-counterpart conversations from a flat
// message list. Derivation is pure: no I/O, no mutation of the input.
package thread

import (
	"sort"
	"time"

	"contact-service/internal/models"
)

// Derive groups messages into conversations keyed by the counterpart's
// email. The counterpart of a message the viewer sent is its recipient;
// otherwise it is the sender. Grouping always uses email, never a sender
// id, so both derivation paths agree on the key. A message with an empty
// or malformed email is still grouped under whatever string is present;
// dropping it would silently lose a counted unread item.
//
// Messages within a conversation are ordered by created_at ascending.
// Conversations are ordered by the latest message's updated_at (falling
// back to created_at) descending. Both sorts are stable, so ties keep
// the store's return order.
func Derive(msgs []models.Message, viewerEmail string) []models.Conversation {
	groups := map[string][]models.Message{}
	names := map[string]string{}
	var order []string

	for _, m := range msgs {
		key := m.SenderEmail
		if m.SenderEmail == viewerEmail {
			key = m.RecipientEmail
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
		if m.SenderEmail != viewerEmail && m.SenderName != "" {
			names[key] = m.SenderName
		}
	}

	conversations := make([]models.Conversation, 0, len(order))
	for _, key := range order {
		grouped := groups[key]
		sort.SliceStable(grouped, func(i, j int) bool {
			return grouped[i].CreatedAt.Before(grouped[j].CreatedAt)
		})

		unread := 0
		for _, m := range grouped {
			if m.RecipientEmail == viewerEmail && m.Status == models.StatusUnread {
				unread++
			}
		}

		conversations = append(conversations, models.Conversation{
			CounterpartName:  names[key],
			CounterpartEmail: key,
			Messages:         grouped,
			UnreadCount:      unread,
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return lastActivity(conversations[i]).After(lastActivity(conversations[j]))
	})
	return conversations
}

func lastActivity(c models.Conversation) time.Time {
	if len(c.Messages) == 0 {
		return time.Time{}
	}
	latest := c.Messages[len(c.Messages)-1]
	if !latest.UpdatedAt.IsZero() {
		return latest.UpdatedAt
	}
	return latest.CreatedAt
}
