package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// MessagingScope is the OAuth2 scope required by the FCM send API.
const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// TokenSource supplies OAuth2 access tokens for a service account. Tokens
// are cached and refreshed shortly before they expire.
type TokenSource struct {
	source oauth2.TokenSource
}

// NewTokenSource creates a token source for the service account. Token
// exchanges use httpClient when it is set and run detached from ctx
// cancellation, since the source outlives the call that builds it.
func NewTokenSource(ctx context.Context, account *ServiceAccount, httpClient *http.Client) (*TokenSource, error) {
	data := account.raw
	if data == nil {
		var err error
		if data, err = json.Marshal(account); err != nil {
			return nil, fmt.Errorf("encode service account: %w", err)
		}
	}
	cfg, err := google.JWTConfigFromJSON(data, MessagingScope)
	if err != nil {
		return nil, fmt.Errorf("load service account: %w", err)
	}
	cfg.TokenURL = account.TokenURI

	ctx = context.WithoutCancel(ctx)
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return &TokenSource{source: cfg.TokenSource(ctx)}, nil
}

// Token returns a valid access token, fetching a new one when needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := s.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	return tok.AccessToken, nil
}

// Ensure TokenSource implements AccessTokenSource.
var _ AccessTokenSource = (*TokenSource)(nil)
