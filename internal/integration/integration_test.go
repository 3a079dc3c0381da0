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

	"lingo-quiz-service/internal/app"
	"lingo-quiz-service/internal/domain"
	pgloader "lingo-quiz-service/internal/infra/postgres"
	pgmigrations "lingo-quiz-service/internal/infra/postgres/migrations"
	infraredis "lingo-quiz-service/internal/infra/redis"
)

func TestQuizRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedVocab(t, ctx, pgURL, sampleEntries())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	vocab := infraredis.NewVocabRepository(redisClient, pgloader.NewVocabLoader(pool), 5*time.Minute)
	store := infraredis.NewSessionStore(redisClient, time.Hour)
	engine := app.NewEngine(store, vocab, app.EngineConfig{
		Scoring: app.ScoringConfig{BasePoints: 10, StreakMultiplier: 2},
		Pacing:  app.PacingHost,
	})
	defer engine.Close()

	session, err := engine.CreateQuiz(ctx, "host-1", "animals", "a1", 2, 30)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	room := session.RoomCode

	if _, err := engine.JoinQuiz(ctx, room, "u1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := engine.JoinQuiz(ctx, room, "u2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	updates, cancel, err := engine.Subscribe(ctx, room)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-updates // initial snapshot

	if _, err := engine.StartGame(ctx, room, "host-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	started, err := engine.GetSession(ctx, room)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	correct := started.Questions[0].CorrectAnswer

	result, err := engine.SubmitAnswer(ctx, room, "u2", correct, 1000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Score != 10 {
		t.Fatalf("expected correct answer worth 10, got %+v", result)
	}
	if _, err := engine.SubmitAnswer(ctx, room, "u1", "wrong", 1000); err != nil {
		t.Fatalf("submit wrong: %v", err)
	}

	current, err := engine.GetSession(ctx, room)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ranked := app.Rank(current.Players)
	if len(ranked) != 2 || ranked[0].PlayerID != "u2" || ranked[0].Score != 10 {
		t.Fatalf("expected Bob leading with 10, got %+v", ranked)
	}

	// Drain at least one pushed snapshot to prove the pub/sub path works.
	select {
	case update := <-updates:
		if update.RoomCode != room {
			t.Fatalf("unexpected snapshot %+v", update)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no snapshot pushed over redis pub/sub")
	}

	if _, err := engine.NextQuestion(ctx, room, "host-1", 0); err != nil {
		t.Fatalf("next: %v", err)
	}
	final, err := engine.NextQuestion(ctx, room, "host-1", 1)
	if err != nil {
		t.Fatalf("final next: %v", err)
	}
	if final.Status != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", final.Status)
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

func seedVocab(t *testing.T, ctx context.Context, dsn string, entries []domain.VocabEntry) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, e := range entries {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO vocab_entries (id, term, translation, unit, level) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Term, e.Translation, e.Unit, e.Level); err != nil {
			t.Fatalf("insert vocab: %v", err)
		}
	}
}

func sampleEntries() []domain.VocabEntry {
	return []domain.VocabEntry{
		{ID: "v1", Term: "hund", Translation: "dog", Unit: "animals", Level: "a1"},
		{ID: "v2", Term: "katt", Translation: "cat", Unit: "animals", Level: "a1"},
		{ID: "v3", Term: "häst", Translation: "horse", Unit: "animals", Level: "a1"},
		{ID: "v4", Term: "fågel", Translation: "bird", Unit: "animals", Level: "a1"},
		{ID: "v5", Term: "fisk", Translation: "fish", Unit: "animals", Level: "a1"},
		{ID: "v6", Term: "björn", Translation: "bear", Unit: "animals", Level: "a1"},
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
