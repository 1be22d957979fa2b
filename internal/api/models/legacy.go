package models

// The types below are the response shapes of the first generation
// endpoints (/registerUser, /sendPushNotification, /getMessages). Mobile
// clients built against those endpoints decode them field by field.

// LegacyEnvelope wraps every successful legacy response.
type LegacyEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// LegacyError is the body of a failed legacy call.
type LegacyError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LegacyRegisterData is the data of a /registerUser response.
type LegacyRegisterData struct {
	UserID       string    `json:"userId"`
	PhoneNumber  string    `json:"phoneNumber"`
	RegisteredAt Timestamp `json:"registeredAt"`
}

// LegacySendData is the data of a /sendPushNotification response.
type LegacySendData struct {
	UserID           string `json:"userId"`
	PhoneNumber      string `json:"phoneNumber"`
	MessageID        string `json:"messageId"`
	NotificationSent bool   `json:"notificationSent"`
	FCMResponse      string `json:"fcmResponse,omitempty"`
	Error            string `json:"error,omitempty"`
}

// LegacyMessagesData is the data of a /getMessages response.
type LegacyMessagesData struct {
	UserID   string           `json:"userId"`
	Messages []PendingMessage `json:"messages"`
	Count    int              `json:"count"`
}
