package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

// OAuthProvider runs the Google consent flow for the spreadsheet account.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthHandler serves the admin consent URL and the OAuth callback.
type OAuthHandler struct {
	provider OAuthProvider
	log      *zap.Logger
}

func NewOAuthHandler(provider OAuthProvider, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{provider: provider, log: logger}
}

// AuthURL returns the consent URL and pins a state cookie for the callback.
func (h *OAuthHandler) AuthURL(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"url": h.provider.AuthURL(state)})
}

// Callback exchanges the code, stores the token and redirects to /auth-success.
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No authorization code provided"})
		return
	}
	if expected, err := c.Cookie(stateCookie); err == nil && expected != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}

	tok, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.Error("exchange oauth code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get authorization tokens"})
		return
	}
	h.log.Info("google sheets authorised", zap.Bool("refresh_token", tok.RefreshToken != ""))
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/auth-success")
}
