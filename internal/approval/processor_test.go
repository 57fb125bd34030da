package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/attempt"
	attemptdomain "voicetrust/backend/internal/attempt/domain"
	attemptrepo "voicetrust/backend/internal/attempt/repository"
	"voicetrust/backend/internal/audit"
	identitydomain "voicetrust/backend/internal/identity/domain"
	"voicetrust/backend/internal/localization"
	notifdomain "voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/policy/engine"
	ticketdomain "voicetrust/backend/internal/ticket/domain"
	ticketrepo "voicetrust/backend/internal/ticket/repository"
	validatordomain "voicetrust/backend/internal/validator/domain"
)

type memValidators map[string]*validatordomain.Validator

func (m memValidators) GetByID(_ context.Context, id string) (*validatordomain.Validator, error) {
	return m[id], nil
}

type memIdentities map[string]*identitydomain.Identity

func (m memIdentities) LookupByID(_ context.Context, id string) (*identitydomain.Identity, error) {
	return m[id], nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) LogEvent(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*notifdomain.Message
}

func (n *recordingNotifier) Dispatch(_ context.Context, msgs ...*notifdomain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
}

type failingPolicy struct{}

func (failingPolicy) EvaluateApproval(context.Context, engine.ApprovalInput) (engine.ApprovalResult, error) {
	return engine.ApprovalResult{}, errors.New("compile error")
}

type fixture struct {
	proc     *Processor
	tickets  *ticketrepo.MemoryRepository
	attempts *attemptrepo.MemoryRepository
	audit    *recordingAudit
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	msgs, err := localization.NewEngine(localization.DefaultCatalog(), "fr", "neutral")
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	f := &fixture{
		tickets:  ticketrepo.NewMemoryRepository(),
		attempts: attemptrepo.NewMemoryRepository(),
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
	f.proc = NewProcessor(Deps{
		Tickets: f.tickets,
		Validators: memValidators{
			"A1": {ID: "A1", Kind: validatordomain.KindAgent, Active: true},
			"A2": {ID: "A2", Kind: validatordomain.KindAgent, Active: true},
			"A9": {ID: "A9", Kind: validatordomain.KindAgent, Active: false},
			"C1": {ID: "C1", Kind: validatordomain.KindCoopOfficer, Active: true},
		},
		Policy: engine.NewOPAEvaluator(nil, log),
		Identities: memIdentities{
			"m-1": {ID: "m-1", Phone: "+2250701020304", DisplayName: "Awa", Language: "en"},
		},
		Attempts: attempt.NewLog(f.attempts, log),
		Audit:    f.audit,
		Notifier: f.notifier,
		Messages: msgs,
		Log:      log,
	})
	f.proc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) seed(t *testing.T, id string, method ticketdomain.Method, createdAt time.Time) {
	t.Helper()
	_, err := f.tickets.Create(context.Background(), &ticketdomain.Ticket{
		ID: id, IdentityID: "m-1", Code: "123456", Method: method, RequesterPhone: "+2250701020304",
		CreatedAt: createdAt, ExpiresAt: createdAt.Add(ticketdomain.TTL),
	})
	require.NoError(t, err)
	require.NoError(t, f.attempts.UpsertPending(context.Background(), &attemptdomain.Attempt{
		ID: "att-" + id, IdentityID: "m-1", Outcome: attemptdomain.OutcomePending, CreatedAt: createdAt,
	}))
}

func TestApprove_ThenAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "T1", ticketdomain.MethodAgent, f.now.Add(-time.Minute))

	res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "APPROVED", Notes: "seen in person"})
	require.NoError(t, err)
	assert.True(t, res.SessionCreated)
	assert.Equal(t, "m-1", res.IdentityID)
	assert.Equal(t, ticketdomain.StatusApproved, res.Status)

	tk, _ := f.tickets.GetByID(context.Background(), "T1")
	assert.Equal(t, ticketdomain.StatusApproved, tk.Status)
	assert.Equal(t, "A1", tk.ValidatorID)
	assert.Equal(t, "seen in person", tk.ValidatorNotes)
	require.NotNil(t, tk.ValidatedAt)
	assert.Equal(t, f.now, *tk.ValidatedAt)

	assert.Equal(t, attemptdomain.OutcomeSuccess, f.attempts.Rows()[0].Outcome)
	require.Len(t, f.notifier.msgs, 1)
	assert.Equal(t, notifdomain.ChannelSMS, f.notifier.msgs[0].Channel)
	assert.Equal(t, "+2250701020304", f.notifier.msgs[0].Recipient)
	assert.Contains(t, f.notifier.msgs[0].Body, "Awa")

	res, err = f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A2", Decision: "REJECTED"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.False(t, res.SessionCreated)
	assert.Contains(t, res.Message, "approved")
	tk, _ = f.tickets.GetByID(context.Background(), "T1")
	assert.Equal(t, "A1", tk.ValidatorID, "second decision must not change the ticket")

	assert.Equal(t, []string{audit.ActionApproved, audit.ActionAlreadyProcessed}, f.audit.actions())
}

func TestApprove_Rejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "T1", ticketdomain.MethodAgent, f.now)

	res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "rejected"})
	require.NoError(t, err)
	assert.False(t, res.SessionCreated)
	assert.Equal(t, ticketdomain.StatusRejected, res.Status)
	assert.Equal(t, attemptdomain.OutcomeFailed, f.attempts.Rows()[0].Outcome)
	assert.Empty(t, f.notifier.msgs)
	assert.Equal(t, []string{audit.ActionRejected}, f.audit.actions())
}

func TestApprove_NotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Approve(context.Background(), Request{TicketID: "nope", ValidatorID: "A1", Decision: "APPROVED"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, res.SessionCreated)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, []string{audit.ActionFailed}, f.audit.actions())
}

func TestApprove_ExpiryBoundary(t *testing.T) {
	testCases := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"one second before expiry", ticketdomain.TTL - time.Second, nil},
		{"exactly at expiry", ticketdomain.TTL, apperr.ErrExpired},
		{"after expiry", ticketdomain.TTL + time.Minute, apperr.ErrExpired},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "T1", ticketdomain.MethodAgent, f.now.Add(-tc.age))

			res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "APPROVED"})
			tk, _ := f.tickets.GetByID(context.Background(), "T1")
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, ticketdomain.StatusApproved, tk.Status)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, res.SessionCreated)
			assert.Equal(t, ticketdomain.StatusExpired, tk.Status)
			assert.Equal(t, attemptdomain.OutcomeFailed, f.attempts.Rows()[0].Outcome)
			assert.Equal(t, []string{audit.ActionExpired}, f.audit.actions())
		})
	}
}

func TestApprove_Forbidden(t *testing.T) {
	testCases := []struct {
		name      string
		validator string
		method    ticketdomain.Method
	}{
		{"unknown validator", "ghost", ticketdomain.MethodAgent},
		{"inactive validator", "A9", ticketdomain.MethodAgent},
		{"agent on cooperative ticket", "A1", ticketdomain.MethodCooperative},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "T1", tc.method, f.now)

			res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: tc.validator, Decision: "APPROVED"})
			assert.ErrorIs(t, err, apperr.ErrForbidden)
			assert.False(t, res.SessionCreated)
			tk, _ := f.tickets.GetByID(context.Background(), "T1")
			assert.Equal(t, ticketdomain.StatusPending, tk.Status)
			assert.Equal(t, []string{audit.ActionDenied}, f.audit.actions())
		})
	}
}

func TestApprove_CoopOfficerOnCooperativeTicket(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "T1", ticketdomain.MethodCooperative, f.now)
	res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "C1", Decision: "APPROVED"})
	require.NoError(t, err)
	assert.True(t, res.SessionCreated)
}

func TestApprove_PolicyFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "T1", ticketdomain.MethodAgent, f.now)
	f.proc.d.Policy = failingPolicy{}

	_, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "APPROVED"})
	assert.True(t, apperr.Retryable(err))
	tk, _ := f.tickets.GetByID(context.Background(), "T1")
	assert.Equal(t, ticketdomain.StatusPending, tk.Status)
}

func TestApprove_StoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.tickets.Err = errors.New("connection reset")
	_, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "APPROVED"})
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
}

func TestApprove_InvalidDecision(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "MAYBE"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.NotEmpty(t, res.Message)
}

func TestApprove_ConcurrentValidatorsSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "T1", ticketdomain.MethodAgent, f.now)

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := DecisionApproved
			if i%2 == 1 {
				decision = DecisionRejected
			}
			_, results[i] = f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: decision})
		}(i)
	}
	wg.Wait()

	wins, already := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, already)
	assert.Len(t, f.audit.actions(), n)
}

// staleFirstRead serves one pending snapshot, then the live store, so a concurrent
// resolution lands between the read and the expiry write.
type staleFirstRead struct {
	*ticketrepo.MemoryRepository
	snapshot *ticketdomain.Ticket
	served   bool
}

func (s *staleFirstRead) GetByID(ctx context.Context, id string) (*ticketdomain.Ticket, error) {
	if !s.served {
		s.served = true
		return s.snapshot, nil
	}
	return s.MemoryRepository.GetByID(ctx, id)
}

func TestApprove_ExpiredTicketResolvedConcurrently(t *testing.T) {
	f := newFixture(t)
	created := f.now.Add(-ticketdomain.TTL - time.Minute)
	f.seed(t, "T1", ticketdomain.MethodAgent, created)
	snapshot, err := f.tickets.GetByID(context.Background(), "T1")
	require.NoError(t, err)
	snap := *snapshot

	ok, err := f.tickets.Resolve(context.Background(), "T1", ticketdomain.Resolution{Status: ticketdomain.StatusRejected, ValidatorID: "A2", At: f.now})
	require.NoError(t, err)
	require.True(t, ok)
	f.proc.d.Tickets = &staleFirstRead{MemoryRepository: f.tickets, snapshot: &snap}

	res, err := f.proc.Approve(context.Background(), Request{TicketID: "T1", ValidatorID: "A1", Decision: "APPROVED"})
	assert.ErrorIs(t, err, apperr.ErrExpired)
	assert.Equal(t, ticketdomain.StatusRejected, res.Status, "status reflects the write that won")
	assert.Equal(t, attemptdomain.OutcomePending, f.attempts.Rows()[0].Outcome, "attempts untouched when expiry lost")
}
