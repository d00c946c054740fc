package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// ErrNoCredentials is returned when neither an OAuth token nor a service account is configured.
var ErrNoCredentials = errors.New("google sheets credentials not configured")

// TokenStore persists the token obtained through the consent flow.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// AuthConfig holds OAuth client and service account credentials.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string

	// ServiceAccountJSON takes precedence over the email/key pair.
	ServiceAccountJSON  []byte
	ServiceAccountEmail string
	PrivateKey          string

	// Endpoint overrides Google's OAuth endpoints (tests).
	Endpoint *oauth2.Endpoint
}

// Authenticator produces HTTP clients for the Sheets API. Credentials are tried
// in order: stored consent token, configured refresh token, service account.
type Authenticator struct {
	oauth  *oauth2.Config
	cfg    AuthConfig
	tokens TokenStore
}

func NewAuthenticator(cfg AuthConfig, tokens TokenStore) *Authenticator {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{sheetsapi.SpreadsheetsScope},
			Endpoint:     endpoint,
		},
		cfg:    cfg,
		tokens: tokens,
	}
}

// AuthURL returns the consent URL. Offline access with forced consent makes
// Google issue a refresh token every time.
func (a *Authenticator) AuthURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("authorization code is required")
	}
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if a.tokens != nil {
		if err := a.tokens.Save(ctx, tok); err != nil {
			return nil, fmt.Errorf("store oauth token: %w", err)
		}
	}
	return tok, nil
}

// Client returns an authorised HTTP client.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	if a.tokens != nil {
		tok, err := a.tokens.Load(ctx)
		if err != nil {
			return nil, err
		}
		if tok != nil && (tok.RefreshToken != "" || tok.Valid()) {
			return a.oauth.Client(ctx, tok), nil
		}
	}
	if a.cfg.RefreshToken != "" {
		return a.oauth.Client(ctx, &oauth2.Token{RefreshToken: a.cfg.RefreshToken}), nil
	}
	if len(a.cfg.ServiceAccountJSON) > 0 {
		jwtCfg, err := google.JWTConfigFromJSON(a.cfg.ServiceAccountJSON, sheetsapi.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		return jwtCfg.Client(ctx), nil
	}
	if a.cfg.ServiceAccountEmail != "" && a.cfg.PrivateKey != "" {
		jwtCfg := &jwt.Config{
			Email: a.cfg.ServiceAccountEmail,
			// keys pasted into env files carry literal \n sequences
			PrivateKey: []byte(strings.ReplaceAll(a.cfg.PrivateKey, `\n`, "\n")),
			Scopes:     []string{sheetsapi.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		return jwtCfg.Client(ctx), nil
	}
	return nil, ErrNoCredentials
}
