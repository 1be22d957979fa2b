// Package push delivers best-effort notifications for stored messages.
//
// A Dispatcher never returns an error: every failure becomes an Outcome so
// that message persistence never depends on the push channel.
package push

import (
	"context"
	"time"
)

// Status is the result category of a dispatch attempt.
type Status string

// Dispatch statuses.
const (
	StatusDelivered          Status = "delivered"
	StatusSkippedNoToken     Status = "skipped_no_token"
	StatusSkippedUserUnknown Status = "skipped_user_unknown"
	StatusDeliveryFailed     Status = "delivery_failed"
)

// Outcome reports what happened to a dispatch attempt.
type Outcome struct {
	Status Status
	// Reason explains a failed or skipped attempt.
	Reason string
	// ProviderMessageID is the channel's ID for a delivered notification.
	ProviderMessageID string
	// ContactAddress is the registered device's address, when one was found.
	ContactAddress string
}

// Sent reports whether the notification reached the push channel.
func (o Outcome) Sent() bool {
	return o.Status == StatusDelivered
}

// Request identifies the stored message to announce.
type Request struct {
	UserID    string
	MessageID string
	Text      string
	CreatedAt time.Time
}

// Notification is a single push addressed to one device token.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a notification over a push channel and returns the
// channel's message ID.
type Sender interface {
	Send(ctx context.Context, n Notification) (string, error)
}
