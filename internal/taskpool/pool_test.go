package taskpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/docmesh/internal/domain"
)

func TestPoolLimitsConcurrency(t *testing.T) {
	const limit = 3
	const workers = 20
	pool := New(limit)

	var running, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Run(context.Background(), func() error {
				cur := running.Add(1)
				for {
					old := maxSeen.Load()
					if cur <= old || maxSeen.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if m := maxSeen.Load(); m > limit {
		t.Errorf("max concurrent = %d, want <= %d", m, limit)
	}
	if pool.Running() != 0 || pool.Waiting() != 0 {
		t.Errorf("pool not drained: running=%d waiting=%d", pool.Running(), pool.Waiting())
	}
}

func TestPoolWaitTimesOut(t *testing.T) {
	pool := New(1)

	occupied := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), func() error {
			close(occupied)
			<-release
			return nil
		})
	}()
	<-occupied
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := pool.Run(ctx, func() error { called = true; return nil })
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if called {
		t.Fatal("fn must not run without a slot")
	}
}

func TestPoolPropagatesError(t *testing.T) {
	want := errors.New("boom")
	if err := New(2).Run(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestNilPoolRunsDirectly(t *testing.T) {
	var p *Pool
	called := false
	if err := p.Run(context.Background(), func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("nil pool should run fn, got called=%v err=%v", called, err)
	}
}

func TestNewClampsLimit(t *testing.T) {
	if New(0).Limit() != 1 {
		t.Fatal("expected limit clamped to 1")
	}
}
