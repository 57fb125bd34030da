package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/audit/domain"
)

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, zaptest.NewLogger(t))

	logger.LogEvent(context.Background(), Event{
		ActorID: "A1", Action: ActionApproved, ResourceID: "T1", IdentityID: "M1", Metadata: `{"notes":"ok"}`,
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ActorID != "A1" {
		t.Errorf("actor_id = %q, want %q", entry.ActorID, "A1")
	}
	if entry.Action != ActionApproved {
		t.Errorf("action = %q, want %q", entry.Action, ActionApproved)
	}
	if entry.Resource != ResourceTicket || entry.ResourceID != "T1" {
		t.Errorf("resource = %q/%q, want %q/T1", entry.Resource, entry.ResourceID, ResourceTicket)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_Defaults(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil, nil)

	logger.LogEvent(context.Background(), Event{Action: ActionJanitorExpired, ResourceID: "T9"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
	if repo.entries[0].ActorID != SentinelActorID {
		t.Errorf("actor_id = %q, want %q", repo.entries[0].ActorID, SentinelActorID)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	logger := NewLogger(repo, nil, zaptest.NewLogger(t))

	// best-effort: must not panic or surface the error
	logger.LogEvent(context.Background(), Event{Action: ActionApproved, ResourceID: "T1"})
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	NewLogger(nil, nil, nil).LogEvent(context.Background(), Event{Action: ActionApproved})
}
