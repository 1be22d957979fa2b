package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/push"
	"github.com/pushrelay/pushrelay/internal/resilience"
)

const (
	// ChannelName identifies this push channel.
	ChannelName = "fcm"

	// DefaultBaseURL is the FCM HTTP v1 API base URL.
	DefaultBaseURL = "https://fcm.googleapis.com"
)

// ErrInvalidToken is returned when FCM rejects the device token.
var ErrInvalidToken = errors.New("push token rejected by fcm")

// AccessTokenSource supplies OAuth2 bearer tokens.
type AccessTokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ClientConfig holds configuration for the FCM client.
type ClientConfig struct {
	// ProjectID is the Firebase project (required).
	ProjectID string

	// Tokens supplies bearer tokens (required).
	Tokens AccessTokenSource

	// BaseURL is the API base URL (optional, defaults to FCM).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client sends notifications through FCM.
type Client struct {
	projectID  string
	tokens     AccessTokenSource
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new FCM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ChannelName))
	}

	return &Client{
		projectID:  cfg.ProjectID,
		tokens:     cfg.Tokens,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "push.fcm").Logger(),
	}
}

// Name returns the channel name.
func (c *Client) Name() string {
	return ChannelName
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
	APNS         *apnsConfig       `json:"apns,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority string `json:"priority"`
}

type apnsConfig struct {
	Payload apnsPayload `json:"payload"`
}

type apnsPayload struct {
	APS aps `json:"aps"`
}

type aps struct {
	Sound string `json:"sound"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers n and returns the FCM message name.
func (c *Client) Send(ctx context.Context, n push.Notification) (string, error) {
	bearer, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}

	body, err := json.Marshal(sendRequest{Message: message{
		Token:        n.Token,
		Notification: notification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
		Android:      &androidConfig{Priority: "high"},
		APNS:         &apnsConfig{Payload: apnsPayload{APS: aps{Sound: "default"}}},
	}})
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := c.decodeError(resp)
		c.logger.Debug().Int("status", resp.StatusCode).Err(err).Msg("fcm rejected message")
		return "", err
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return sr.Name, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	for _, d := range er.Error.Details {
		if d.ErrorCode == "UNREGISTERED" || d.ErrorCode == "INVALID_ARGUMENT" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, d.ErrorCode)
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrInvalidToken, er.Error.Status)
	}

	return fmt.Errorf("unexpected status code: %d %s: %s", resp.StatusCode, er.Error.Status, er.Error.Message)
}

// Ensure Client implements push.Sender.
var _ push.Sender = (*Client)(nil)
