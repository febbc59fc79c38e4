package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/splitkit/splitkit/internal/store"
)

func setupSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestSQLite_SetGet(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "experiments", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	data, err := s.Get(ctx, "experiments")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected data %q", data)
	}
}

func TestSQLite_GetMissing(t *testing.T) {
	s := setupSQLite(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_Overwrite(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	data, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected last write to win, got %q", data)
	}
}

func TestSQLite_SizeBytes(t *testing.T) {
	s := setupSQLite(t)

	size, err := s.SizeBytes()
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size <= 0 {
		t.Errorf("expected positive size, got %d", size)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := m.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	data, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("unexpected data %q", data)
	}
}
