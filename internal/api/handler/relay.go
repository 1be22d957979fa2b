// Package handler provides HTTP handlers for the push relay API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
)

// maxBodyBytes bounds request bodies. Push tokens are the largest field.
const maxBodyBytes = 64 << 10

// RelayService is the set of relay operations served over HTTP.
type RelayService interface {
	RegisterDevice(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error)
	SendMessage(ctx context.Context, req *models.SendRequest) (*models.SendResponse, error)
	FetchMessages(ctx context.Context, userID string) (*models.FetchResponse, error)
}

// RelayHandler handles device registration, send and fetch endpoints.
type RelayHandler struct {
	service RelayService
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(service RelayService) *RelayHandler {
	return &RelayHandler{service: service}
}

// Register handles POST /v1/devices - register or update a device.
func (h *RelayHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.RegisterDevice(r.Context(), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Send handles POST /v1/messages - store a message and attempt a push.
// The response is 200 once the message is stored, whatever the push outcome.
func (h *RelayHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.SendMessage(r.Context(), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// FetchByQuery handles GET /v1/messages?userId= - drain pending messages.
func (h *RelayHandler) FetchByQuery(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, r.URL.Query().Get("userId"))
}

// FetchByPath handles GET /v1/users/{userId}/messages - drain pending messages.
func (h *RelayHandler) FetchByPath(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, chi.URLParam(r, "userId"))
}

func (h *RelayHandler) fetch(w http.ResponseWriter, r *http.Request, userID string) {
	resp, err := h.service.FetchMessages(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// decodeJSON decodes the request body into dst and writes a 400 problem on
// failure. Returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := readJSON(w, r, dst); err != nil {
		response.MalformedBody(w, r, err.Error())
		return false
	}
	return true
}

// readJSON decodes a size-limited request body into dst. The returned
// error text is safe to show to clients.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return errors.New("invalid JSON body")
		}
	}
	return nil
}
