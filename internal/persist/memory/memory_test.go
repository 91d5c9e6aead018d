package memory

import (
	"context"
	"errors"
	"testing"

	"sidas/internal/persist"
)

func TestAdapter_Contract(t *testing.T) {
	ctx := context.Background()
	a := New()

	if _, err := a.Load(ctx, "k"); !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("Load(absent) error = %v, want ErrNotFound", err)
	}
	ok, err := a.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("Exists(absent) = %v, %v; want false, nil", ok, err)
	}
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete(absent) must be idempotent, got %v", err)
	}

	if err := a.Save(ctx, "k", "v1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Save(ctx, "k", "v2"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	v, err := a.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v != "v2" {
		t.Fatalf("Load = %v, want v2", v)
	}

	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := a.Exists(ctx, "k"); ok {
		t.Fatalf("Exists after Delete = true")
	}

	st := a.Stats()
	if st.Saves != 2 || st.Deletes != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestAdapter_WithCodecIsolatesValues(t *testing.T) {
	ctx := context.Background()
	a := New(WithCodec(persist.JSONCodec{}))

	in := map[string]any{"a": 1}
	if err := a.Save(ctx, "k", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in["a"] = 2

	v, err := a.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := v.(map[string]any)["a"]; got != 1.0 {
		t.Fatalf("stored value was mutated through caller map: %v", got)
	}
}

func TestAdapter_SaveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New()
	err := a.Save(ctx, "k", 1)
	if !errors.Is(err, persist.ErrPersistence) {
		t.Fatalf("Save(cancelled) error = %v, want ErrPersistence", err)
	}
	if ok, _ := a.Exists(context.Background(), "k"); ok {
		t.Fatalf("cancelled Save must not store a value")
	}
}
