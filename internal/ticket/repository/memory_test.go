package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voicetrust/backend/internal/ticket/domain"
)

func newTicket(id, identityID string, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID: id, IdentityID: identityID, Code: "123456", Method: domain.MethodAgent,
		RequesterPhone: "+2250701020304", CreatedAt: created, ExpiresAt: created.Add(domain.TTL),
	}
}

func TestMemoryRepository_CreateSupersedesPending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now().UTC()

	if _, err := repo.Create(ctx, newTicket("T1", "M1", now)); err != nil {
		t.Fatalf("Create T1: %v", err)
	}
	superseded, err := repo.Create(ctx, newTicket("T2", "M1", now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("Create T2: %v", err)
	}
	if len(superseded) != 1 || superseded[0] != "T1" {
		t.Fatalf("superseded = %v, want [T1]", superseded)
	}
	if p := repo.Pending("M1"); len(p) != 1 || p[0].ID != "T2" {
		t.Fatalf("pending = %v, want only T2", p)
	}
	t1, _ := repo.GetByID(ctx, "T1")
	if t1.Status != domain.StatusExpired || t1.SupersededBy != "T2" {
		t.Errorf("T1 = {status:%s superseded_by:%q}, want {expired T2}", t1.Status, t1.SupersededBy)
	}
}

func TestMemoryRepository_ResolveIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, _ = repo.Create(ctx, newTicket("T1", "M1", time.Now()))

	res := domain.Resolution{Status: domain.StatusApproved, ValidatorID: "A1", At: time.Now()}
	ok, err := repo.Resolve(ctx, "T1", res)
	if err != nil || !ok {
		t.Fatalf("first Resolve = %v, %v; want true", ok, err)
	}
	ok, err = repo.Resolve(ctx, "T1", domain.Resolution{Status: domain.StatusRejected, ValidatorID: "A2", At: time.Now()})
	if err != nil || ok {
		t.Fatalf("second Resolve = %v, %v; want false", ok, err)
	}
	got, _ := repo.GetByID(ctx, "T1")
	if got.Status != domain.StatusApproved || got.ValidatorID != "A1" || got.ValidatedAt == nil {
		t.Errorf("ticket = %+v, want approved by A1", got)
	}
	if ok, _ := repo.MarkExpired(ctx, "T1"); ok {
		t.Error("MarkExpired on resolved ticket should be false")
	}
}

func TestMemoryRepository_ConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, _ = repo.Create(ctx, newTicket("T1", "M1", time.Now()))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Resolve(ctx, "T1", domain.Resolution{Status: domain.StatusApproved, ValidatorID: "A1", At: time.Now()})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("winners = %d, want 1", wins.Load())
	}
}

func TestMemoryRepository_ExpireStale(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	old := time.Now().Add(-time.Hour)
	_, _ = repo.Create(ctx, newTicket("T1", "M1", old))
	_, _ = repo.Create(ctx, newTicket("T2", "M2", time.Now()))

	expired, err := repo.ExpireStale(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "T1" || expired[0].Status != domain.StatusExpired {
		t.Fatalf("expired = %+v, want [T1]", expired)
	}
	if p := repo.Pending("M2"); len(p) != 1 {
		t.Errorf("M2 pending = %d, want 1", len(p))
	}
}
