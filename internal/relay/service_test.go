package relay_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/message"
	"github.com/pushrelay/pushrelay/internal/push"
	"github.com/pushrelay/pushrelay/internal/relay"
)

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) Send(context.Context, push.Notification) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "projects/p/messages/1", nil
}

type fixture struct {
	service  *relay.Service
	sender   *stubSender
	messages *message.InMemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	devices := device.NewService(device.ServiceConfig{
		Repository: device.NewInMemoryRepository(),
		Logger:     logger,
	})
	messageRepo := message.NewInMemoryRepository()
	messages := message.NewService(message.ServiceConfig{
		Repository: messageRepo,
		Logger:     logger,
	})
	sender := &stubSender{}
	dispatcher := push.NewDispatcher(push.DispatcherConfig{
		Devices: devices,
		Sender:  sender,
		Logger:  logger,
		Timeout: time.Second,
	})

	return &fixture{
		service: relay.NewService(relay.ServiceConfig{
			Devices:    devices,
			Messages:   messages,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		sender:   sender,
		messages: messageRepo,
	}
}

func strPtr(s string) *string { return &s }

func TestService_Scenario_RegisterWithoutTokenSendFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.RegisterDevice(ctx, &models.RegisterRequest{UserID: "u1", ContactAddress: "+15551234567"})
	require.NoError(t, err)
	assert.Equal(t, "u1", reg.UserID)
	assert.Equal(t, "+15551234567", reg.ContactAddress)
	assert.False(t, reg.RegisteredAt.Time().IsZero())

	sent, err := f.service.SendMessage(ctx, &models.SendRequest{UserID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.False(t, sent.NotificationSent)
	assert.Equal(t, string(push.StatusSkippedNoToken), sent.Outcome)
	assert.NotEmpty(t, sent.MessageID)
	assert.Equal(t, 0, f.sender.calls)

	fetched, err := f.service.FetchMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Count)
	require.Len(t, fetched.Messages, 1)
	assert.Equal(t, "hello", fetched.Messages[0].Text)
	assert.Equal(t, sent.MessageID, fetched.Messages[0].MessageID)

	again, err := f.service.FetchMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Count)
	assert.NotNil(t, again.Messages)
	assert.Empty(t, again.Messages)
}

func TestService_Send_Delivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterDevice(ctx, &models.RegisterRequest{UserID: "u1", ContactAddress: "+15551234567", PushToken: strPtr("tok")})
	require.NoError(t, err)

	sent, err := f.service.SendMessage(ctx, &models.SendRequest{UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, sent.NotificationSent)
	assert.Equal(t, string(push.StatusDelivered), sent.Outcome)
	assert.Equal(t, "+15551234567", sent.ContactAddress)
	assert.NotEmpty(t, sent.ProviderMessageID)
	assert.Empty(t, sent.Detail)
	assert.Equal(t, 1, f.sender.calls)

	// Delivery does not consume the stored copy.
	assert.Equal(t, 1, f.messages.Count("u1"))
}

func TestService_Send_UnknownUserIsAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.service.SendMessage(ctx, &models.SendRequest{UserID: "ghost", Text: "anyone there?"})
	require.NoError(t, err)
	assert.False(t, sent.NotificationSent)
	assert.Equal(t, string(push.StatusSkippedUserUnknown), sent.Outcome)
	assert.Empty(t, sent.ContactAddress)

	fetched, err := f.service.FetchMessages(ctx, "ghost")
	require.NoError(t, err)
	require.Equal(t, 1, fetched.Count)
	assert.Equal(t, "anyone there?", fetched.Messages[0].Text)
}

func TestService_Send_PushFailureIsAccepted(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("push token rejected by fcm: UNREGISTERED")
	ctx := context.Background()

	_, err := f.service.RegisterDevice(ctx, &models.RegisterRequest{UserID: "u1", ContactAddress: "+15551234567", PushToken: strPtr("stale")})
	require.NoError(t, err)

	sent, err := f.service.SendMessage(ctx, &models.SendRequest{UserID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.False(t, sent.NotificationSent)
	assert.Equal(t, string(push.StatusDeliveryFailed), sent.Outcome)
	assert.Contains(t, sent.Detail, "UNREGISTERED")

	fetched, err := f.service.FetchMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Count)
}

func TestService_Send_Validation(t *testing.T) {
	tests := []struct {
		name   string
		req    models.SendRequest
		fields []string
	}{
		{name: "missing user", req: models.SendRequest{Text: "hi"}, fields: []string{"userId"}},
		{name: "missing text", req: models.SendRequest{UserID: "u1"}, fields: []string{"text"}},
		{name: "blank text", req: models.SendRequest{UserID: "u1", Text: "  \n"}, fields: []string{"text"}},
		{name: "both missing", req: models.SendRequest{}, fields: []string{"userId", "text"}},
		{name: "user id too long", req: models.SendRequest{UserID: strings.Repeat("u", device.MaxUserIDLength+1), Text: "hi"}, fields: []string{"userId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.service.SendMessage(context.Background(), &tt.req)

			var validationErr *models.ValidationError
			require.True(t, errors.As(err, &validationErr))
			var got []string
			for _, fe := range validationErr.Errors {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
			assert.Equal(t, 0, f.messages.Count(tt.req.UserID))
			assert.Equal(t, 0, f.sender.calls)
		})
	}
}

func TestService_Register_LegacyFieldNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.service.RegisterDevice(ctx, &models.RegisterRequest{
		UserID:      "u1",
		PhoneNumber: "+81 90-1234-5678",
		FCMToken:    strPtr("legacy-token"),
	})
	require.NoError(t, err)
	assert.Equal(t, "+81 90-1234-5678", resp.ContactAddress)

	sent, err := f.service.SendMessage(ctx, &models.SendRequest{UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, sent.NotificationSent)
}

func TestService_Register_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RegisterDevice(context.Background(), &models.RegisterRequest{UserID: "u1", ContactAddress: "not-a-number"})

	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestService_Fetch_RequiresUserID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FetchMessages(context.Background(), " ")

	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestService_Fetch_RejectsOverlongUserID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FetchMessages(context.Background(), strings.Repeat("u", device.MaxUserIDLength+1))

	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Len(t, validationErr.Errors, 1)
	assert.Equal(t, models.CodeTooLong, validationErr.Errors[0].Code)
}

type brokenStore struct{}

func (brokenStore) Enqueue(context.Context, string, string) (*message.Message, error) {
	return nil, errors.New("store message: connection refused")
}

func (brokenStore) Drain(context.Context, string) ([]*message.Message, error) {
	return nil, errors.New("drain messages: connection refused")
}

type recordingDispatcher struct {
	calls int
}

func (d *recordingDispatcher) Dispatch(context.Context, push.Request) push.Outcome {
	d.calls++
	return push.Outcome{Status: push.StatusDelivered}
}

func TestService_StorageFaultFailsSendWithoutDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	service := relay.NewService(relay.ServiceConfig{
		Devices:    device.NewService(device.ServiceConfig{Repository: device.NewInMemoryRepository(), Logger: zerolog.New(io.Discard)}),
		Messages:   brokenStore{},
		Dispatcher: dispatcher,
		Logger:     zerolog.New(io.Discard),
	})

	_, err := service.SendMessage(context.Background(), &models.SendRequest{UserID: "u1", Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, 0, dispatcher.calls)

	_, err = service.FetchMessages(context.Background(), "u1")
	require.Error(t, err)
	var validationErr *models.ValidationError
	assert.False(t, errors.As(err, &validationErr))
}

type orderCheckingDispatcher struct {
	t     *testing.T
	repo  *message.InMemoryRepository
	calls int
}

func (d *orderCheckingDispatcher) Dispatch(_ context.Context, req push.Request) push.Outcome {
	d.calls++
	assert.Equal(d.t, 1, d.repo.Count(req.UserID), "message must be stored before dispatch")
	return push.Outcome{Status: push.StatusDelivered}
}

func TestService_Send_PersistsBeforeDispatch(t *testing.T) {
	repo := message.NewInMemoryRepository()
	dispatcher := &orderCheckingDispatcher{t: t, repo: repo}
	service := relay.NewService(relay.ServiceConfig{
		Messages:   message.NewService(message.ServiceConfig{Repository: repo, Logger: zerolog.New(io.Discard)}),
		Dispatcher: dispatcher,
		Logger:     zerolog.New(io.Discard),
	})

	resp, err := service.SendMessage(context.Background(), &models.SendRequest{UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.NotificationSent)
	assert.Equal(t, 1, dispatcher.calls)
}
