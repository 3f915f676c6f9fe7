package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/docmesh/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetThenGetIsVisible(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "task-1", []byte(`{"id":"task-1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != `{"id":"task-1"}` {
		t.Fatalf("expected cached value, got %q found=%v", val, found)
	}
}

func TestGetMiss(t *testing.T) {
	c := newCache(t)
	_, found, err := c.Get(context.Background(), "nope")
	if err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestOverwriteAndDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v1"), time.Minute)
	_ = c.Set(ctx, "k", []byte("v2"), time.Minute)
	if val, _, _ := c.Get(ctx, "k"); string(val) != "v2" {
		t.Fatalf("expected v2 after overwrite, got %q", val)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatal("expected miss after Delete")
	}
	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Fatal("Delete of nonexistent key should not error")
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}
