package state

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func sampleSession() *Session {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("session_1_abcd1234", "cafeterias Brasil 2024 mercado", map[string]string{"segmento": "cafeterias"}, now)
	s.Stage = StageCollecting
	step := s.Steps[Step1]
	step.Status = StepRunning
	step.StartedAt = &now
	s.Steps[Step1] = step
	return s
}

func TestStageRank(t *testing.T) {
	order := []Stage{StagePending, StageCollecting, StageSynthesizing, StageGenerating, StageComplete}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s should rank above %s", order[i], order[i-1])
		}
	}
	if !StageFailed.Terminal() || !StageComplete.Terminal() || StageGenerating.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
	if Stage("BOGUS").Rank() != -1 {
		t.Fatal("unknown stages should rank -1")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := sampleSession()
	c := s.Clone()
	c.Context["segmento"] = "padarias"
	step := c.Steps[Step1]
	step.Status = StepFailed
	c.Steps[Step1] = step
	if s.Context["segmento"] != "cafeterias" || s.Steps[Step1].Status != StepRunning {
		t.Fatal("clone shares state with original")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s := sampleSession()
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Stage = StageSynthesizing
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.Load(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Stage != StageSynthesizing || got.Steps[Step1].Status != StepRunning || got.Context["segmento"] != "cafeterias" {
		t.Fatalf("unexpected record %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != s.SessionID+".json" {
		t.Fatalf("expected a single published file, got %v", entries)
	}
	if _, err := store.Load(ctx, "../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected traversal id to be not found, got %v", err)
	}
	if err := store.Save(ctx, &Session{SessionID: filepath.Join("..", "x")}); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, time.Hour)
	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s := sampleSession()
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(defaultRedisPrefix + s.SessionID); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
	got, err := store.Load(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Query != s.Query || got.Stage != StageCollecting {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestPostgresStoreSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := sampleSession()
	mock.ExpectExec("INSERT INTO lookout.workflow_sessions .* ON CONFLICT \\(session_id\\) DO UPDATE").
		WithArgs(s.SessionID, string(StageCollecting), sqlmock.AnyArg(), s.CreatedAt, s.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresStore(db).Save(context.Background(), s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT data FROM lookout.workflow_sessions WHERE session_id = \\$1").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"session_id":"s1","stage":"GENERATING","query":"q","steps":{"step1":{"status":"completed"}}}`)))
	mock.ExpectQuery("SELECT data FROM lookout.workflow_sessions").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPostgresStore(db)
	got, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Stage != StageGenerating || got.Steps[Step1].Status != StepCompleted {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS lookout").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS lookout").WillReturnError(errors.New("permission denied"))
	if err := EnsureSchema(context.Background(), db); err == nil {
		t.Fatal("expected schema error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
