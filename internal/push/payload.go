package push

import (
	"time"
	"unicode/utf8"
)

// Payload limits and defaults.
const (
	DefaultTitle   = "New message"
	MaxBodyRunes   = 100
	truncateSuffix = "..."
)

// Data payload keys.
const (
	DataUserID    = "userId"
	DataMessageID = "messageId"
	DataText      = "text"
	DataTimestamp = "timestamp"
)

// BuildNotification creates the notification for a stored message. The
// alert body is a preview; the full text travels in Data.
func BuildNotification(token, title string, req Request) Notification {
	if title == "" {
		title = DefaultTitle
	}
	return Notification{
		Token: token,
		Title: title,
		Body:  TruncateBody(req.Text),
		Data: map[string]string{
			DataUserID:    req.UserID,
			DataMessageID: req.MessageID,
			DataText:      req.Text,
			DataTimestamp: req.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// TruncateBody cuts text to MaxBodyRunes characters and appends "..." when
// anything was removed.
func TruncateBody(text string) string {
	if utf8.RuneCountInString(text) <= MaxBodyRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxBodyRunes]) + truncateSuffix
}
