// Package message provides the per-user store of pending messages and its
// atomic drain operation.
package message

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// IDPrefix is prepended to every generated message ID.
const IDPrefix = "msg_"

// Message is a pending message held for a user until it is drained.
type Message struct {
	ID        string
	UserID    string
	Text      string
	CreatedAt time.Time
	// Delivered is stored for compatibility and always false for rows written
	// here. Drain filters on it.
	Delivered bool
	// Seq is the store-assigned insertion sequence, used to order messages
	// that share a timestamp.
	Seq int64
}

// NewID returns a fresh message ID.
func NewID() string {
	return IDPrefix + uuid.New().String()
}

// SortNewestFirst orders messages by creation time descending, then by
// insertion sequence descending.
func SortNewestFirst(messages []*Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.After(messages[j].CreatedAt)
		}
		return messages[i].Seq > messages[j].Seq
	})
}

func copyMessage(m *Message) *Message {
	if m == nil {
		return nil
	}
	cpy := *m
	return &cpy
}
