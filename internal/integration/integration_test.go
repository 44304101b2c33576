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
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/identity"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/postgres"
	"trivia-quiz-service/internal/infra/postgres/migrations"
	infraredis "trivia-quiz-service/internal/infra/redis"
)

func TestQuizOnPostgresEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrated(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	results := postgres.NewResultStore(db)
	service := newService(postgres.NewKVStore(pool, postgres.SnapshotsTable), results)
	player := domain.Player{UserID: "u1", DeviceID: "d1"}

	if _, err := service.Start(ctx, player, domain.QuizConfig{Amount: 3}, 120); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Answer(ctx, player, "4"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := service.PauseAndExit(ctx, player); err != nil {
		t.Fatalf("pause: %v", err)
	}

	candidate, ok := service.CheckResume(ctx, player)
	if !ok || candidate.Answered != 1 || candidate.Total != 3 {
		t.Fatalf("expected a resumable quiz in postgres, got %+v %v", candidate, ok)
	}
	if _, err := service.Resume(ctx, player); err != nil {
		t.Fatalf("resume: %v", err)
	}
	result, err := service.Finish(ctx, player)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.CorrectAnswers != 1 || result.UnansweredQuestions != 2 || result.Score != 33 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := service.CheckResume(ctx, player); ok {
		t.Fatalf("finished quiz must leave no snapshot")
	}

	recent, err := results.Recent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Result != result {
		t.Fatalf("expected the result stored once, got %+v", recent)
	}
}

func TestDirectoryOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	db := migrated(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	dir := identity.NewDirectory(postgres.NewKVStore(pool, postgres.UsersTable), identity.WithHashCost(4))
	user, err := dir.Register(ctx, identity.RegisterRequest{
		Name: "Ann", Email: "Ann@Example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := dir.Login(ctx, "ann@example.com", "secret1")
	if err != nil || got.ID != user.ID {
		t.Fatalf("login: %+v %v", got, err)
	}
}

func TestSnapshotsOnRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	service := newService(infraredis.NewKVStore(client, time.Hour), memory.NewResultStore())
	player := domain.Player{UserID: "u2"}

	if _, err := service.Start(ctx, player, domain.QuizConfig{Amount: 2}, 60); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.PauseAndExit(ctx, player); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, ok := service.CheckResume(ctx, player); !ok {
		t.Fatalf("expected a resumable quiz in redis")
	}
	if err := service.Discard(ctx, player); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, ok := service.CheckResume(ctx, player); ok {
		t.Fatalf("discarded quiz must be gone from redis")
	}
}

func newService(store app.KVStore, results app.ResultRecorder) *app.QuizService {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuestionBank(sampleQuestions()),
		app.NewGateway(store, app.WithGatewayLogger(log)),
		app.WithResultRecorder(results),
		app.WithLogger(log),
	)
}

func migrated(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuestions() []domain.Question {
	qs := make([]domain.Question, 3)
	for i := range qs {
		qs[i] = domain.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Category:      "Science: Mathematics",
			Type:          domain.QuestionMultipleChoice,
			Difficulty:    domain.DifficultyEasy,
			Prompt:        "What is 2 + 2?",
			CorrectAnswer: "4",
			AllAnswers:    []string{"3", "4", "5", "22"},
		}
	}
	return qs
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
