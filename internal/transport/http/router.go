package http

import (
	"net/http"
	"time"

	"quiz-gate-service/internal/app"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Metrics is the request instrumentation mounted on the router.
type Metrics interface {
	SubmissionObserver
	Middleware() gin.HandlerFunc
	Handler() gin.HandlerFunc
}

// RouterConfig carries everything the HTTP surface is built from. Nil optional
// dependencies leave their routes unmounted.
type RouterConfig struct {
	Quiz         *app.QuizService
	Registration *app.RegistrationService
	OAuth        OAuthProvider
	Metrics      Metrics
	Logger       *zap.Logger

	AllowOrigins    []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewRouter assembles the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		r.GET("/metrics", cfg.Metrics.Handler())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	if cfg.Quiz != nil {
		// every session start (REST or websocket) shares one per-IP budget
		startLimit := RateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		NewQuizHandler(cfg.Quiz).Register(r.Group("/api/quiz"), startLimit)
		r.GET("/ws/quiz", startLimit, gin.WrapF(NewWSHandler(cfg.Quiz, logger).ServeWS))
	}

	if cfg.Registration != nil {
		var observer SubmissionObserver
		if cfg.Metrics != nil {
			observer = cfg.Metrics
		}
		forms := NewRegistrationHandler(cfg.Registration, observer)
		limited := r.Group("/api", RateLimiter(cfg.RateLimit, cfg.RateLimitWindow))
		limited.POST("/submit-registration", forms.SubmitRegistration)
		limited.POST("/contact", forms.SubmitContact)
	}

	if cfg.OAuth != nil {
		oauth := NewOAuthHandler(cfg.OAuth, logger)
		r.GET("/admin/oauth/url", oauth.AuthURL)
		r.GET("/api/auth/callback/google", oauth.Callback)
	}

	return r
}
