package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	attemptdomain "voicetrust/backend/internal/attempt/domain"
	"voicetrust/backend/internal/audit"
	"voicetrust/backend/internal/ticket/domain"
	"voicetrust/backend/internal/ticket/repository"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) LogEvent(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type recordingAttempts struct {
	resolved map[string]attemptdomain.Outcome
}

func (r *recordingAttempts) Resolve(_ context.Context, identityID string, outcome attemptdomain.Outcome) {
	r.resolved[identityID] = outcome
}

func newTicket(id, identityID string, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID: id, IdentityID: identityID, Code: "123456", Method: domain.MethodAgent,
		Status: domain.StatusPending, CreatedAt: created, ExpiresAt: created.Add(domain.TTL),
	}
}

func TestJanitor_SweepExpiresOnlyStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryRepository()
	_, err := repo.Create(ctx, newTicket("t-old", "m-1", now.Add(-domain.TTL-time.Second)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTicket("t-fresh", "m-2", now.Add(-time.Minute)))
	require.NoError(t, err)

	au := &recordingAudit{}
	at := &recordingAttempts{resolved: map[string]attemptdomain.Outcome{}}
	j := NewJanitor(JanitorDeps{Tickets: repo, Attempts: at, Audit: au, Log: zaptest.NewLogger(t)})
	j.now = func() time.Time { return now }

	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := repo.GetByID(ctx, "t-old")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, old.Status)
	fresh, err := repo.GetByID(ctx, "t-fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, fresh.Status)

	assert.Equal(t, map[string]attemptdomain.Outcome{"m-1": attemptdomain.OutcomeFailed}, at.resolved)
	require.Len(t, au.events, 1)
	assert.Equal(t, audit.SentinelActorID, au.events[0].ActorID)
	assert.Equal(t, audit.ActionJanitorExpired, au.events[0].Action)
	assert.Equal(t, "t-old", au.events[0].ResourceID)

	n, err = j.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep finds nothing")
}

func TestJanitor_SweepStoreError(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.Err = errors.New("connection reset")
	j := NewJanitor(JanitorDeps{Tickets: repo})
	_, err := j.Sweep(context.Background())
	assert.Error(t, err)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := repository.NewMemoryRepository()
	j := NewJanitor(JanitorDeps{Tickets: repo})
	done := make(chan struct{})
	go func() {
		j.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestJanitor_RunDisabled(t *testing.T) {
	j := NewJanitor(JanitorDeps{Tickets: repository.NewMemoryRepository()})
	j.Run(context.Background(), 0)
}
