package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/ports"
)

type recordingEnrollment struct {
	mu       sync.Mutex
	repaired []string
	done     chan struct{}
}

func (s *recordingEnrollment) Repair(_ context.Context, userID string) (*ports.ReconcileResult, error) {
	s.mu.Lock()
	s.repaired = append(s.repaired, userID)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return &ports.ReconcileResult{UserID: userID}, nil
}

func (s *recordingEnrollment) CorrectEnrollment(context.Context, string, string) (*ports.ReconcileResult, error) {
	return nil, nil
}

func (s *recordingEnrollment) HandleNewUser(context.Context, ports.NewUserInput) (*ports.ReconcileResult, error) {
	return nil, nil
}

func (s *recordingEnrollment) MigrateToReferralCodes(context.Context) (*ports.MigrateResult, error) {
	return nil, nil
}

func TestDispatcher_RunsRepairs(t *testing.T) {
	svc := &recordingEnrollment{done: make(chan struct{}, 16)}
	d := NewDispatcher(2, svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	users := []string{"user-1", "user-2", "user-3"}
	for _, u := range users {
		d.Enqueue(u)
	}

	deadline := time.After(2 * time.Second)
	for i := 0; i < len(users); i++ {
		select {
		case <-svc.done:
		case <-deadline:
			t.Fatalf("timed out waiting for repairs, got %d", i)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	seen := map[string]bool{}
	for _, u := range svc.repaired {
		seen[u] = true
	}
	for _, u := range users {
		if !seen[u] {
			t.Fatalf("user %s was never repaired", u)
		}
	}
}

func TestDispatcher_SameUserSameWorker(t *testing.T) {
	d := NewDispatcher(4, &recordingEnrollment{done: make(chan struct{}, 1)}, zerolog.Nop())

	first := d.shardIndex("user-42")
	for i := 0; i < 100; i++ {
		if d.shardIndex("user-42") != first {
			t.Fatalf("shard index must be deterministic per user")
		}
	}
}

func TestDispatcher_FullShardDropsInsteadOfBlocking(t *testing.T) {
	// workers never started, so the buffers only drain by dropping
	d := NewDispatcher(1, &recordingEnrollment{done: make(chan struct{}, 1)}, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			d.Enqueue("user-1")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("Enqueue must never block on a full shard")
	}
}
