package risk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/risk/domain"
)

type memRiskRepo struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
}

func (m *memRiskRepo) Append(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func TestRecorder_Record(t *testing.T) {
	repo := &memRiskRepo{}
	r := NewRecorder(repo, zaptest.NewLogger(t))
	ok := r.Record(context.Background(), domain.TypeEscalation, domain.SeverityMedium, "M1", map[string]any{"ticket_id": "T1"})
	if !ok {
		t.Fatal("Record = false, want true")
	}
	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	ev := repo.events[0]
	if ev.Type != domain.TypeEscalation || ev.Severity != domain.SeverityMedium || ev.IdentityID != "M1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Detail["ticket_id"] != "T1" {
		t.Errorf("detail ticket_id = %v, want T1", ev.Detail["ticket_id"])
	}
	if ev.ID == "" || ev.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be set")
	}
}

func TestRecorder_FailureIsSwallowed(t *testing.T) {
	r := NewRecorder(&memRiskRepo{err: errors.New("db down")}, zaptest.NewLogger(t))
	if r.Record(context.Background(), domain.TypeEscalation, domain.SeverityMedium, "M1", nil) {
		t.Error("Record = true, want false on store failure")
	}
	if NewRecorder(nil, nil).Record(context.Background(), domain.TypeEscalation, domain.SeverityLow, "", nil) {
		t.Error("Record with nil repo = true, want false")
	}
}
