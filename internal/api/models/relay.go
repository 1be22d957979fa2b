package models

// RegisterRequest is the request body for registering a device.
// PhoneNumber and FCMToken are the field names used by the first
// generation of mobile clients and are accepted as aliases.
type RegisterRequest struct {
	UserID         string  `json:"userId"`
	ContactAddress string  `json:"contactAddress,omitempty"`
	PushToken      *string `json:"pushToken,omitempty"`

	PhoneNumber string  `json:"phoneNumber,omitempty"`
	FCMToken    *string `json:"fcmToken,omitempty"`
}

// Normalize folds legacy field names into their current equivalents.
func (r *RegisterRequest) Normalize() {
	if r.ContactAddress == "" && r.PhoneNumber != "" {
		r.ContactAddress = r.PhoneNumber
	}
	if r.PushToken == nil && r.FCMToken != nil {
		r.PushToken = r.FCMToken
	}
	r.PhoneNumber = ""
	r.FCMToken = nil
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	UserID         string    `json:"userId"`
	ContactAddress string    `json:"contactAddress"`
	RegisteredAt   Timestamp `json:"registeredAt"`
}

// SendRequest is the request body for sending a message.
type SendRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// SendResponse reports an accepted message. NotificationSent=false does
// not mean the message was lost: it stays retrievable via fetch.
type SendResponse struct {
	UserID string `json:"userId"`
	// ContactAddress is empty when the user has not registered a device.
	ContactAddress    string `json:"contactAddress,omitempty"`
	MessageID         string `json:"messageId"`
	NotificationSent  bool   `json:"notificationSent"`
	Outcome           string `json:"outcome"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// PendingMessage is a drained message as returned to the client.
type PendingMessage struct {
	MessageID string    `json:"messageId"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"createdAt"`
}

// FetchResponse lists drained messages, newest first.
type FetchResponse struct {
	UserID   string           `json:"userId"`
	Messages []PendingMessage `json:"messages"`
	Count    int              `json:"count"`
}
