package memory

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore holds the OAuth token for the life of the process.
type TokenStore struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Load(context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, nil
	}
	tok := *s.tok
	return &tok, nil
}

func (s *TokenStore) Save(_ context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *tok
	s.tok = &copied
	return nil
}
