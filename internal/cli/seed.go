package cli

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/config"
	"github.com/klairtech/thalassemia-quiz/internal/domain"
	"github.com/klairtech/thalassemia-quiz/internal/infra/postgres"
	"github.com/klairtech/thalassemia-quiz/internal/logger"
)

//go:embed seed_questions.json
var seedQuestionsJSON []byte

// seedQuestionPool decodes the embedded thalassemia question set. The same
// pool backs the seed command and the no-postgres dev mode.
func seedQuestionPool() ([]domain.QuizQuestion, error) {
	var questions []domain.QuizQuestion
	if err := json.Unmarshal(seedQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode seed questions: %w", err)
	}
	return questions, nil
}

// NewSeedCmd loads the embedded question pool into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the quiz question pool into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log := logger.New(cfg.Log.Level, cfg.Log.File)
			defer log.Sync()

			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}

			questions, err := seedQuestionPool()
			if err != nil {
				return err
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			if err := postgres.SeedQuestions(ctx, db, questions); err != nil {
				return err
			}
			log.Info("question pool seeded", zap.Int("questions", len(questions)))
			return nil
		},
	}
}
