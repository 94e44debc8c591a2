package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/pkg/fees"
)

type fakeTxnStore struct {
	byID map[uuid.UUID]*Transaction
}

func newFakeTxnStore() *fakeTxnStore {
	return &fakeTxnStore{byID: make(map[uuid.UUID]*Transaction)}
}

func (f *fakeTxnStore) Create(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	f.byID[t.ID] = &cp
	return nil
}

func (f *fakeTxnStore) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTxnStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	t, ok := f.byID[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

type fakeRecorder struct {
	inputs []ledger.RecordInput
	err    error
}

func (f *fakeRecorder) Record(ctx context.Context, in ledger.RecordInput) (ledger.RecordResult, error) {
	if f.err != nil {
		return ledger.RecordResult{Enabled: true}, f.err
	}
	f.inputs = append(f.inputs, in)
	return ledger.RecordResult{Enabled: true, JournalID: uuid.New()}, nil
}

type fakeRefresher struct {
	refreshed []uuid.UUID
}

func (f *fakeRefresher) Refresh(ctx context.Context, walletID uuid.UUID) error {
	f.refreshed = append(f.refreshed, walletID)
	return nil
}

func newTestService(store Store, rec JournalRecorder, wallets WalletRefresher) *Service {
	return NewService(store, fees.NewCalculator(15), rec, wallets)
}

func TestCreatePrecomputesFeeSplit(t *testing.T) {
	store := newFakeTxnStore()
	svc := newTestService(store, &fakeRecorder{}, &fakeRefresher{})

	txn, err := svc.Create(context.Background(), CreateInput{
		WalletID:   uuid.New(),
		CreatorID:  uuid.New(),
		AttendeeID: uuid.New(),
		FlowType:   FlowPhotoPurchase,
		Provider:   "stripe",
		Currency:   "USD",
		GrossMinor: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.Status != StatusPending {
		t.Fatalf("new transaction must be pending, got %s", txn.Status)
	}
	if txn.PlatformFeeMinor != 150 {
		t.Fatalf("platform fee = %d, want 150", txn.PlatformFeeMinor)
	}
	if txn.EffectiveProviderFee() != 59 {
		t.Fatalf("provider fee = %d, want 59", txn.EffectiveProviderFee())
	}
	if txn.NetMinor != 791 {
		t.Fatalf("net = %d, want 791", txn.NetMinor)
	}
}

func TestCreateRejectsNonPositiveGross(t *testing.T) {
	svc := newTestService(newFakeTxnStore(), &fakeRecorder{}, &fakeRefresher{})

	if _, err := svc.Create(context.Background(), CreateInput{GrossMinor: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSettleRecordsJournalAndRefreshesWallet(t *testing.T) {
	store := newFakeTxnStore()
	rec := &fakeRecorder{}
	wallets := &fakeRefresher{}
	svc := newTestService(store, rec, wallets)

	txn, err := svc.Create(context.Background(), CreateInput{
		WalletID:   uuid.New(),
		CreatorID:  uuid.New(),
		AttendeeID: uuid.New(),
		FlowType:   FlowTip,
		Provider:   "paystack",
		Currency:   "NGN",
		GrossMinor: 2000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	settled, err := svc.Settle(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != StatusSucceeded {
		t.Fatalf("status = %s", settled.Status)
	}
	if settled.SettledAt == nil {
		t.Fatal("settled_at not set")
	}

	if len(rec.inputs) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(rec.inputs))
	}
	journal := rec.inputs[0]
	if journal.FlowType != ledger.FlowTip {
		t.Fatalf("flow = %s", journal.FlowType)
	}
	if journal.IdempotencyKey != ledger.SourceKey(ledger.FlowTip, txn.ID.String()) {
		t.Fatalf("key = %q", journal.IdempotencyKey)
	}
	if journal.Metadata.TransactionID != txn.ID.String() {
		t.Fatal("metadata back-reference missing")
	}

	var debits, credits int64
	for _, p := range journal.Postings {
		if p.Direction == ledger.Debit {
			debits += p.AmountMinor
		} else {
			credits += p.AmountMinor
		}
	}
	if debits != credits || debits != 2000 {
		t.Fatalf("unbalanced settlement journal: debits=%d credits=%d", debits, credits)
	}

	if len(wallets.refreshed) != 1 || wallets.refreshed[0] != txn.WalletID {
		t.Fatalf("wallet not refreshed: %v", wallets.refreshed)
	}
}

func TestSettleRejectsNonPending(t *testing.T) {
	store := newFakeTxnStore()
	svc := newTestService(store, &fakeRecorder{}, &fakeRefresher{})

	txn := &Transaction{Status: StatusFailed}
	if err := store.Create(context.Background(), txn); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Settle(context.Background(), txn.ID); !errors.Is(err, ErrNotSettleable) {
		t.Fatalf("expected ErrNotSettleable, got %v", err)
	}
}

func TestRefundMirrorsSettlement(t *testing.T) {
	store := newFakeTxnStore()
	rec := &fakeRecorder{}
	wallets := &fakeRefresher{}
	svc := newTestService(store, rec, wallets)

	txn, err := svc.Create(context.Background(), CreateInput{
		WalletID:   uuid.New(),
		CreatorID:  uuid.New(),
		AttendeeID: uuid.New(),
		FlowType:   FlowPhotoPurchase,
		Provider:   "stripe",
		Currency:   "USD",
		GrossMinor: 1000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Settle(context.Background(), txn.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	refunded, err := svc.Refund(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != StatusRefunded {
		t.Fatalf("status = %s", refunded.Status)
	}

	if len(rec.inputs) != 2 {
		t.Fatalf("expected settle + refund journals, got %d", len(rec.inputs))
	}
	refund := rec.inputs[1]
	if refund.FlowType != ledger.FlowRefund {
		t.Fatalf("refund flow = %s", refund.FlowType)
	}

	// Paired journals net every account to zero.
	net := make(map[string]int64)
	for _, in := range rec.inputs {
		for _, p := range in.Postings {
			if p.Direction == ledger.Debit {
				net[p.AccountCode] += p.AmountMinor
			} else {
				net[p.AccountCode] -= p.AmountMinor
			}
		}
	}
	for account, v := range net {
		if v != 0 {
			t.Fatalf("account %s does not net to zero: %d", account, v)
		}
	}
}

func TestRefundRejectsUnsettled(t *testing.T) {
	store := newFakeTxnStore()
	svc := newTestService(store, &fakeRecorder{}, &fakeRefresher{})

	txn, err := svc.Create(context.Background(), CreateInput{
		WalletID:   uuid.New(),
		CreatorID:  uuid.New(),
		AttendeeID: uuid.New(),
		FlowType:   FlowPhotoPurchase,
		Provider:   "stripe",
		Currency:   "USD",
		GrossMinor: 1000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Refund(context.Background(), txn.ID); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("expected ErrNotRefundable, got %v", err)
	}
}

func TestSettleSurvivesLedgerFailure(t *testing.T) {
	store := newFakeTxnStore()
	rec := &fakeRecorder{err: errors.New("ledger down")}
	wallets := &fakeRefresher{}
	svc := newTestService(store, rec, wallets)

	txn, err := svc.Create(context.Background(), CreateInput{
		WalletID:   uuid.New(),
		CreatorID:  uuid.New(),
		AttendeeID: uuid.New(),
		FlowType:   FlowPhotoPurchase,
		Provider:   "stripe",
		Currency:   "USD",
		GrossMinor: 1000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	settled, err := svc.Settle(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("settlement must not fail on ledger errors: %v", err)
	}
	if settled.Status != StatusSucceeded {
		t.Fatalf("status = %s", settled.Status)
	}
}
