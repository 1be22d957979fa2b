// Package fcm sends push notifications through the Firebase Cloud
// Messaging HTTP v1 API.
package fcm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenURL is Google's OAuth2 token endpoint.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

const serviceAccountType = "service_account"

// ServiceAccount is a Google service-account key file. The identifying
// fields are decoded for logging and validation; the raw file is what the
// token source is built from.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`

	raw []byte
}

// LoadServiceAccount reads and validates a service-account key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	return ParseServiceAccount(data)
}

// ParseServiceAccount decodes a service-account key file and checks that
// its private key is a usable RSA key, so a broken file fails at startup
// rather than on the first send.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	if sa.Type != serviceAccountType {
		return nil, fmt.Errorf("credentials type is %q, want %q", sa.Type, serviceAccountType)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account is missing client_email or private_key")
	}
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey)); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURL
	}
	sa.raw = data
	return &sa, nil
}
