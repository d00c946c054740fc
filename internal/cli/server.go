package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/config"
	"quiz-gate-service/internal/infra/events"
	"quiz-gate-service/internal/infra/memory"
	"quiz-gate-service/internal/infra/postgres"
	redisstore "quiz-gate-service/internal/infra/redis"
	"quiz-gate-service/internal/infra/sheets"
	"quiz-gate-service/internal/logging"
	"quiz-gate-service/internal/metrics"
	transport "quiz-gate-service/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "listen port (overrides config)")
	return cmd
}

// components is everything the server owns and must release on shutdown.
type components struct {
	quiz         *app.QuizService
	registration *app.RegistrationService
	oauth        transport.OAuthProvider
	metrics      *metrics.Recorder
	router       *gin.Engine
	closers      []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, cfg.Server.Mode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      comps.router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting quiz gate service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	comps.quiz.Shutdown()
	return err
}

// buildComponents wires stores, reporters and services from cfg. Redis and
// Postgres are optional; without them everything runs in memory.
func buildComponents(ctx context.Context, cfg config.Config, logger *zap.Logger) (*components, error) {
	comps := &components{metrics: metrics.New()}
	fail := func(err error) (*components, error) {
		comps.close()
		return nil, err
	}

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		comps.closers = append(comps.closers, func() { redisClient.Close() })
	}

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		comps.closers = append(comps.closers, pool.Close)
		db = postgres.OpenDB(cfg.Postgres.URL)
		comps.closers = append(comps.closers, func() { db.Close() })
	}

	bank, err := questionBank(cfg, pool, redisClient)
	if err != nil {
		return fail(err)
	}

	var progress app.ProgressStore
	switch {
	case redisClient != nil:
		progress = redisstore.NewProgressStore(redisClient, config.TTLDuration(cfg.Redis.ProgressTTL, 0))
	case db != nil:
		progress = postgres.NewProgressStore(db)
	default:
		progress = memory.NewProgressStore()
	}

	var sessions app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, logger.Named("events"))
	if err != nil {
		return fail(err)
	}
	comps.closers = append(comps.closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	})

	comps.quiz = app.NewQuizService(sessions, bank, progress, app.Options{
		QuestionCount:     cfg.Quiz.QuestionCount,
		QuestionDuration:  cfg.Quiz.QuestionDuration,
		PassThreshold:     cfg.Quiz.PassThreshold,
		BlockAfterFailure: cfg.Quiz.BlockAfterFailure,
		AutoStartTimer:    cfg.Quiz.AutoStartTimer,
		Retention:         config.TTLDuration(cfg.Quiz.Retention, 10*time.Minute),
		IdleTimeout:       config.TTLDuration(cfg.Quiz.IdleTimeout, 15*time.Minute),
		Logger:            logger.Named("quiz"),
	}, comps.metrics, publisher)

	var tokens sheets.TokenStore = memory.NewTokenStore()
	if redisClient != nil {
		tokens = redisTokenStore(redisClient)
	}

	var (
		regStore app.RegistrationStore
		contacts app.ContactStore
	)
	switch {
	case cfg.Sheets.Enabled():
		authCfg, err := sheetsAuthConfig(cfg.Sheets)
		if err != nil {
			return fail(err)
		}
		auth := sheets.NewAuthenticator(authCfg, tokens)
		comps.oauth = auth
		store := sheets.NewStore(auth, cfg.Sheets.SpreadsheetID, logger.Named("sheets"))
		regStore, contacts = store, store
	case db != nil:
		store := postgres.NewRegistrationStore(db)
		regStore, contacts = store, store
	default:
		logger.Warn("no spreadsheet or database configured, registrations are kept in memory")
		store := memory.NewRegistrationStore()
		regStore, contacts = store, store
	}
	comps.registration = app.NewRegistrationService(regStore, contacts, progress, cfg.Registration.RequirePass, logger.Named("registration"))

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := transport.RouterConfig{
		Quiz:            comps.quiz,
		Registration:    comps.registration,
		Metrics:         comps.metrics,
		Logger:          logger.Named("http"),
		AllowOrigins:    cfg.CORS.AllowOrigins,
		RateLimit:       cfg.RateLimit.Requests,
		RateLimitWindow: config.TTLDuration(cfg.RateLimit.Window, time.Minute),
		OAuth:           comps.oauth,
	}
	comps.router = transport.NewRouter(routerCfg)
	return comps, nil
}

// questionBank picks the bank source: Postgres when configured, otherwise the
// bundled questions, cached in Redis or in process.
func questionBank(cfg config.Config, pool *pgxpool.Pool, client *redis.Client) (app.QuestionBank, error) {
	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if pool == nil {
		return memory.NewDefaultBank()
	}
	loader := postgres.NewQuestionLoader(pool)
	if client != nil {
		return redisstore.NewQuestionBank(client, loader, ttl), nil
	}
	return memory.NewCachedBank(loader, ttl), nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func redisTokenStore(client *redis.Client) sheets.TokenStore {
	return redisstore.NewTokenStore(client)
}

func sheetsAuthConfig(cfg config.SheetsConfig) (sheets.AuthConfig, error) {
	authCfg := sheets.AuthConfig{
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURL:         cfg.RedirectURL,
		RefreshToken:        cfg.RefreshToken,
		ServiceAccountEmail: cfg.ServiceAccountEmail,
		PrivateKey:          cfg.PrivateKey,
	}
	if cfg.ServiceAccountFile != "" {
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return authCfg, fmt.Errorf("read service account file: %w", err)
		}
		authCfg.ServiceAccountJSON = data
	}
	return authCfg, nil
}
