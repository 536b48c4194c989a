package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/app"
	"github.com/klairtech/thalassemia-quiz/internal/domain"
	pgstore "github.com/klairtech/thalassemia-quiz/internal/infra/postgres"
	pgmigrations "github.com/klairtech/thalassemia-quiz/internal/infra/postgres/migrations"
	redisstore "github.com/klairtech/thalassemia-quiz/internal/infra/redis"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := pgstore.SeedQuestions(ctx, db, sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := redisstore.NewQuestionCache(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	repo := pgstore.NewAttemptRepository(db)
	service := app.NewQuizService(questions, repo, repo, zap.NewNop())

	served, err := service.Questions(ctx, 2, "")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(served) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(served))
	}

	attempt, result, err := service.SubmitAttempt(ctx, app.SubmitInput{
		Name:             "Alice",
		Language:         "en",
		TotalQuestions:   3,
		CorrectAnswers:   3,
		TimeTakenSeconds: 10,
		Answers: []domain.QuizAnswer{
			{QuestionID: "q1", SelectedAnswers: []int{0}, IsCorrect: true},
			{QuestionID: "q2", SelectedAnswers: []int{0}, IsCorrect: true},
			{QuestionID: "q3", SelectedAnswers: []int{0, 1}, IsCorrect: true},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.MetaScore != 120 || result.Grade != domain.GradeAPlus {
		t.Fatalf("expected 120/A+, got %v/%s", result.MetaScore, result.Grade)
	}
	if !attempt.Provisional || !strings.HasPrefix(attempt.UserMobile, "temp-") {
		t.Fatalf("attempt without contact must be provisional, got %+v", attempt)
	}

	updated, err := service.AttachIdentity(ctx, attempt.ID, "9876543210", "alice@example.com")
	if err != nil {
		t.Fatalf("attach identity: %v", err)
	}
	if updated.Provisional || updated.UserMobile != "9876543210" {
		t.Fatalf("identity not attached: %+v", updated)
	}

	if _, _, err := service.SubmitAttempt(ctx, app.SubmitInput{
		Name:             "Bob",
		Mobile:           "1234567890",
		Language:         "en",
		TotalQuestions:   3,
		CorrectAnswers:   1,
		TimeTakenSeconds: 25,
	}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	lb, err := service.Leaderboard(ctx, 10, &domain.Identity{Name: "Bob", Mobile: "1234567890"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.TopEntries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.TopEntries))
	}
	if lb.TopEntries[0].UserName != "Alice" {
		t.Fatalf("expected Alice leading, got %s", lb.TopEntries[0].UserName)
	}
	if lb.CurrentUserRank == nil || *lb.CurrentUserRank != 2 {
		t.Fatalf("expected Bob ranked 2nd, got %v", lb.CurrentUserRank)
	}
	if lb.TotalEntries != 2 {
		t.Fatalf("expected 2 total entries, got %d", lb.TotalEntries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuestions() []domain.QuizQuestion {
	return []domain.QuizQuestion{
		{
			ID:             "q1",
			Question:       "Thalassemia is a genetic blood disorder.",
			Options:        []string{"True", "False"},
			CorrectAnswers: []int{0},
			Type:           domain.QuestionTrueFalse,
			Difficulty:     domain.DifficultyEasy,
		},
		{
			ID:             "q2",
			Question:       "Which organ is most affected by iron overload?",
			Options:        []string{"Liver", "Skin", "Eyes", "Nails"},
			CorrectAnswers: []int{0},
			Type:           domain.QuestionMCQ,
			Difficulty:     domain.DifficultyMedium,
		},
		{
			ID:             "q3",
			Question:       "Select the common thalassemia treatments.",
			Options:        []string{"Blood transfusion", "Chelation therapy", "Antibiotics", "Surgery"},
			CorrectAnswers: []int{0, 1},
			Type:           domain.QuestionMultiSelect,
			Difficulty:     domain.DifficultyHard,
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
