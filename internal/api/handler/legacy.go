package handler

import (
	"errors"
	"net/http"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/push"
)

// LegacyHandler serves the first generation endpoints. It runs the same
// relay operations as RelayHandler but answers in the
// {success, message, data} envelope, with {error} bodies on failure.
type LegacyHandler struct {
	service RelayService
}

// NewLegacyHandler creates a new LegacyHandler.
func NewLegacyHandler(service RelayService) *LegacyHandler {
	return &LegacyHandler{service: service}
}

// Only restricts h to one method. OPTIONS is answered with 204 and any
// other method with a 405 error body.
func (h *LegacyHandler) Only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case method:
			next(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Allow", method+", "+http.MethodOptions)
			legacyError(w, r, http.StatusMethodNotAllowed, "Method not allowed. Use "+method+".")
		}
	}
}

// RegisterUser handles POST /registerUser.
func (h *LegacyHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := readJSON(w, r, &req); err != nil {
		legacyError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.RegisterDevice(r.Context(), &req)
	if err != nil {
		legacyFromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LegacyEnvelope{
		Success: true,
		Message: "User registered successfully",
		Data: models.LegacyRegisterData{
			UserID:       resp.UserID,
			PhoneNumber:  resp.ContactAddress,
			RegisteredAt: resp.RegisteredAt,
		},
	})
}

// SendPushNotification handles POST /sendPushNotification. Like Send, it
// answers 200 once the message is stored.
func (h *LegacyHandler) SendPushNotification(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if err := readJSON(w, r, &req); err != nil {
		legacyError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SendMessage(r.Context(), &req)
	if err != nil {
		legacyFromError(w, r, err)
		return
	}

	data := models.LegacySendData{
		UserID:           resp.UserID,
		PhoneNumber:      resp.ContactAddress,
		MessageID:        resp.MessageID,
		NotificationSent: resp.NotificationSent,
		FCMResponse:      resp.ProviderMessageID,
	}
	var msg string
	switch push.Status(resp.Outcome) {
	case push.StatusDelivered:
		msg = "Push notification sent successfully"
	case push.StatusSkippedNoToken:
		msg = "Message saved but FCM token not registered"
	case push.StatusSkippedUserUnknown:
		msg = "Message saved but user is not registered"
	default:
		msg = "Message saved but push notification failed"
		data.Error = resp.Detail
	}

	response.JSON(w, r, http.StatusOK, models.LegacyEnvelope{Success: true, Message: msg, Data: data})
}

// GetMessages handles GET /getMessages?userId=.
func (h *LegacyHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.FetchMessages(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		legacyFromError(w, r, err)
		return
	}

	msg := "Messages retrieved successfully"
	if resp.Count == 0 {
		msg = "No messages found"
	}
	response.JSON(w, r, http.StatusOK, models.LegacyEnvelope{
		Success: true,
		Message: msg,
		Data: models.LegacyMessagesData{
			UserID:   resp.UserID,
			Messages: resp.Messages,
			Count:    resp.Count,
		},
	})
}

func legacyFromError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		legacyError(w, r, http.StatusBadRequest, validationErr.Detail())
		return
	}
	response.JSON(w, r, http.StatusInternalServerError, models.LegacyError{
		Error:   "Internal server error",
		Message: "an unexpected error occurred",
	})
}

func legacyError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	response.JSON(w, r, status, models.LegacyError{Error: detail})
}
