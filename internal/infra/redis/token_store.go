package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const tokenKey = "oauth:google:token"

// TokenStore persists the Google OAuth token obtained through the admin consent flow.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Load returns nil without error when no token has been stored.
func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	payload, err := s.client.Get(ctx, tokenKey).Bytes()
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(payload, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return &tok, nil
}

func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	payload, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return s.client.Set(ctx, tokenKey, payload, 0).Err()
}
