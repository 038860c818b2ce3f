package repo

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Rollout/internal/domain"
)

func TestNullHelpers(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string should be NULL")
	}
	if v := nullString("x"); v == nil || *v != "x" {
		t.Error("non-empty string should be kept")
	}

	nilID := uuid.Nil
	if nullUUID(&nilID) != nil || nullUUID(nil) != nil {
		t.Error("nil uuid should be NULL")
	}
	id := uuid.New()
	if got := nullUUID(&id); got == nil || *got != id {
		t.Error("uuid should be kept")
	}
}

func TestPassRepo(t *testing.T) {
	if os.Getenv("DB_URL") == "" {
		t.Skip("DB_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, "")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	r := NewPassRepo(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	requestID := uuid.New()
	pass := domain.NewPass("production", "eu", []string{"Deploy", "Cleanup"})
	pass.RequestID = &requestID
	pass.MarkRunning()
	if err := r.RecordPass(ctx, pass); err != nil {
		t.Fatalf("record: %v", err)
	}

	pass.Executed = 1
	pass.MarkCanceled("Deploy", `the tasks queue was canceled by task "Deploy"`)
	if err := r.RecordPass(ctx, pass); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetByID(ctx, pass.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.PassStatusCanceled || got.CanceledBy != "Deploy" || len(got.Tasks) != 2 {
		t.Errorf("unexpected pass: %+v", got)
	}

	list, err := r.List(ctx, PassFilter{RequestID: &requestID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 pass, got %d", len(list))
	}

	if _, err := r.GetByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
