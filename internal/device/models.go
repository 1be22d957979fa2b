// Package device provides the device registry: a durable mapping from a
// user ID to the contact address and push token of that user's device.
package device

import (
	"errors"
	"strings"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
)

// Device is the registry record for a single user.
type Device struct {
	UserID         string
	ContactAddress string
	PushToken      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasToken reports whether the device can be addressed on the push channel.
func (d *Device) HasToken() bool {
	return strings.TrimSpace(d.PushToken) != ""
}

// TokenLast4 returns the last 4 characters of the token for display purposes.
func (d *Device) TokenLast4() string {
	if len(d.PushToken) < 4 {
		return d.PushToken
	}
	return d.PushToken[len(d.PushToken)-4:]
}

// UpsertParams describes a registration write. PushToken is nil when the
// caller did not supply a token, in which case any stored token is kept.
type UpsertParams struct {
	UserID         string
	ContactAddress string
	PushToken      *string
	Now            time.Time
}

func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}
