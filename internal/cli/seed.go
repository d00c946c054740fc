package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"quiz-gate-service/internal/config"
	"quiz-gate-service/internal/domain"
	"quiz-gate-service/internal/infra/memory"
	"quiz-gate-service/internal/infra/postgres"
	redisstore "quiz-gate-service/internal/infra/redis"
	"quiz-gate-service/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads a question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the questions table (bundled bank unless --file is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log, cfg.Server.Mode)
			if err != nil {
				return err
			}
			defer logger.Sync()

			questions, err := loadQuestions(file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}

			db := postgres.OpenDB(cfg.Postgres.URL)
			defer db.Close()
			n, err := postgres.SeedQuestions(cmd.Context(), db, questions)
			if err != nil {
				return err
			}
			logger.Info("question bank seeded", zap.Int("rows", n))
			return invalidateBankCache(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with questions ({id, question, options, correctAnswer})")
	return cmd
}

// invalidateBankCache drops the Redis copy of the bank so running servers
// pick up the seeded questions on their next read.
func invalidateBankCache(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	client := newRedisClient(cfg)
	if client == nil {
		return nil
	}
	defer client.Close()
	if err := redisstore.InvalidateQuestionBank(ctx, client); err != nil {
		return err
	}
	logger.Info("question bank cache invalidated")
	return nil
}

func loadQuestions(path string) ([]domain.Question, error) {
	if path == "" {
		return memory.DefaultQuestions()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return questions, nil
}
