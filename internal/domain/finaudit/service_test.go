package finaudit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/domain/notification"
	"github.com/fotofair/fotofair-api/internal/domain/payout"
	"github.com/fotofair/fotofair-api/internal/domain/transaction"
	"github.com/fotofair/fotofair-api/internal/domain/wallet"
)

type fakeSources struct {
	txns     []transaction.Transaction
	payouts  []payout.Payout
	balances []wallet.Balance
	journals []ledger.Journal
	postings []ledger.Posting
	payables []ledger.CreatorPayable

	dups      []notification.DuplicateRow
	unfollows []notification.Notification
	unknown   []notification.Notification
}

func (f *fakeSources) ListByStatusSince(ctx context.Context, statuses []transaction.Status, since time.Time, limit int) ([]transaction.Transaction, error) {
	return f.txns, nil
}

type fakePayoutSource struct{ f *fakeSources }

func (p fakePayoutSource) ListByStatusSince(ctx context.Context, statuses []payout.Status, since time.Time, limit int) ([]payout.Payout, error) {
	return p.f.payouts, nil
}

type fakeWalletSource struct{ f *fakeSources }

func (w fakeWalletSource) ListBalances(ctx context.Context, limit int) ([]wallet.Balance, error) {
	return w.f.balances, nil
}

type fakeLedgerSource struct{ f *fakeSources }

func (l fakeLedgerSource) ListJournalsSince(ctx context.Context, since time.Time, limit int) ([]ledger.Journal, error) {
	return l.f.journals, nil
}

func (l fakeLedgerSource) ListPostingsByJournalIDs(ctx context.Context, journalIDs []uuid.UUID) ([]ledger.Posting, error) {
	return l.f.postings, nil
}

func (l fakeLedgerSource) CreatorPayableOutstanding(ctx context.Context) ([]ledger.CreatorPayable, error) {
	return l.f.payables, nil
}

type fakeNotificationSource struct{ f *fakeSources }

func (n fakeNotificationSource) DuplicateVisibleDedupeKeys(ctx context.Context, limit int) ([]notification.DuplicateRow, error) {
	return n.f.dups, nil
}

func (n fakeNotificationSource) VisibleUnfollows(ctx context.Context, limit int) ([]notification.Notification, error) {
	return n.f.unfollows, nil
}

func (n fakeNotificationSource) UnknownCategories(ctx context.Context, limit int) ([]notification.Notification, error) {
	return n.f.unknown, nil
}

func newAuditService(f *fakeSources, ledgerEnabled bool) *Service {
	return NewService(f, fakePayoutSource{f}, fakeWalletSource{f}, fakeLedgerSource{f}, fakeNotificationSource{f}, ledgerEnabled)
}

func fee(v int64) *int64 { return &v }

// cleanWorld builds one settled transaction with a matching wallet balance,
// settlement journal and ledger payable view.
func cleanWorld() *fakeSources {
	txnID := uuid.New()
	walletID := uuid.New()
	creatorID := uuid.New()
	journalID := uuid.New()

	return &fakeSources{
		txns: []transaction.Transaction{{
			ID:               txnID,
			WalletID:         walletID,
			CreatorID:        creatorID,
			FlowType:         transaction.FlowPhotoPurchase,
			Currency:         "USD",
			GrossMinor:       1000,
			PlatformFeeMinor: 150,
			ProviderFeeMinor: fee(59),
			NetMinor:         791,
			Status:           transaction.StatusSucceeded,
		}},
		balances: []wallet.Balance{{
			WalletID:         walletID,
			CreatorID:        creatorID,
			Currency:         "USD",
			TotalEarnings:    791,
			TotalPaidOut:     0,
			PendingPayout:    0,
			AvailableBalance: 791,
		}},
		journals: []ledger.Journal{{
			ID:       journalID,
			SourceID: txnID.String(),
			FlowType: ledger.FlowPhotoPurchase,
			Currency: "USD",
		}},
		postings: []ledger.Posting{
			{JournalID: journalID, AccountCode: ledger.AccountPlatformCashClearing, Direction: ledger.Debit, AmountMinor: 1000},
			{JournalID: journalID, AccountCode: ledger.AccountCreatorPayable, Direction: ledger.Credit, AmountMinor: 791},
			{JournalID: journalID, AccountCode: ledger.AccountPlatformRevenue, Direction: ledger.Credit, AmountMinor: 150},
			{JournalID: journalID, AccountCode: ledger.AccountProviderFeeExpense, Direction: ledger.Credit, AmountMinor: 59},
		},
		payables: []ledger.CreatorPayable{{
			CreatorID: creatorID.String(),
			Currency:  "USD",
			Minor:     791,
		}},
	}
}

func findIssue(report *Report, code string) *IssueGroup {
	for i := range report.Issues {
		if report.Issues[i].Code == code {
			return &report.Issues[i]
		}
	}
	return nil
}

func TestAuditPassesOnConsistentData(t *testing.T) {
	svc := newAuditService(cleanWorld(), true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Pass {
		t.Fatalf("expected pass, got issues %+v", report.Issues)
	}
	if !report.Coverage.LedgerChecks {
		t.Fatal("ledger checks should run when enabled")
	}
	if report.Coverage.Transactions != 1 || report.Coverage.Journals != 1 {
		t.Fatalf("unexpected coverage %+v", report.Coverage)
	}
}

func TestAuditFlagsNetAmountMismatch(t *testing.T) {
	world := cleanWorld()
	world.txns[0].NetMinor = 800 // gross 1000 - 150 - 59 = 791, not 800
	world.balances[0].TotalEarnings = 800
	world.balances[0].AvailableBalance = 800
	world.payables[0].Minor = 800

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pass {
		t.Fatal("expected audit failure")
	}

	issue := findIssue(report, CodeNetAmountMismatch)
	if issue == nil {
		t.Fatalf("missing %s in %+v", CodeNetAmountMismatch, report.Issues)
	}
	if issue.Severity != SeverityCritical {
		t.Fatalf("severity = %s, want critical", issue.Severity)
	}
	if issue.Count != 1 || len(issue.Samples) != 1 {
		t.Fatalf("unexpected group %+v", issue)
	}
	if report.Totals.Critical != 1 {
		t.Fatalf("critical total = %d", report.Totals.Critical)
	}
}

func TestAuditFlagsWalletBalanceDrift(t *testing.T) {
	world := cleanWorld()
	world.balances[0].AvailableBalance = 1000 // cached ahead of raw sums
	world.payables[0].Minor = 1000

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pass {
		t.Fatal("expected audit failure")
	}

	issue := findIssue(report, CodeWalletBalanceDrift)
	if issue == nil || issue.Severity != SeverityError {
		t.Fatalf("expected wallet drift error, got %+v", report.Issues)
	}
}

func TestAuditFlagsMissingSettlementJournal(t *testing.T) {
	world := cleanWorld()
	world.journals = nil
	world.postings = nil

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pass {
		t.Fatal("expected audit failure")
	}

	issue := findIssue(report, CodeMissingSettlementJournal)
	if issue == nil || issue.Severity != SeverityCritical {
		t.Fatalf("expected missing settlement journal critical, got %+v", report.Issues)
	}
}

func TestAuditSkipsLedgerChecksWhenDisabled(t *testing.T) {
	world := cleanWorld()
	world.journals = nil // would be a critical finding if checked

	svc := newAuditService(world, false)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Pass {
		t.Fatalf("expected pass with ledger disabled, got %+v", report.Issues)
	}
	if report.Coverage.LedgerChecks {
		t.Fatal("ledger checks must not run when disabled")
	}
}

func TestAuditFlagsUnbalancedJournal(t *testing.T) {
	world := cleanWorld()
	world.postings = world.postings[:2] // drop revenue and expense legs

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issue := findIssue(report, CodeUnbalancedJournal)
	if issue == nil || issue.Severity != SeverityCritical {
		t.Fatalf("expected unbalanced journal critical, got %+v", report.Issues)
	}
}

func TestAuditFlagsMissingPayoutJournal(t *testing.T) {
	world := cleanWorld()
	payoutID := uuid.New()
	world.payouts = []payout.Payout{{
		ID:          payoutID,
		WalletID:    world.balances[0].WalletID,
		CreatorID:   world.balances[0].CreatorID,
		Currency:    "USD",
		AmountMinor: 791,
		Status:      payout.StatusCompleted,
	}}
	// Keep the wallet aggregates consistent with the completed payout.
	world.balances[0].TotalPaidOut = 791
	world.balances[0].AvailableBalance = 0
	world.payables[0].Minor = 0

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	issue := findIssue(report, CodeMissingPayoutJournal)
	if issue == nil || issue.Severity != SeverityCritical {
		t.Fatalf("expected missing payout journal critical, got %+v", report.Issues)
	}
}

func TestAuditFlagsPayableWithoutWalletRow(t *testing.T) {
	world := cleanWorld()
	// The ledger owes a second creator who has no wallet view entry at all.
	world.payables = append(world.payables, ledger.CreatorPayable{
		CreatorID: uuid.New().String(),
		Currency:  "USD",
		Minor:     500,
	})

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pass {
		t.Fatal("expected audit failure")
	}

	issue := findIssue(report, CodeLedgerWalletMismatch)
	if issue == nil || issue.Severity != SeverityError {
		t.Fatalf("expected ledger/wallet mismatch error, got %+v", report.Issues)
	}
	if issue.Samples[0]["wallet_available"] != int64(0) {
		t.Fatalf("missing wallet row must compare as zero, got %+v", issue.Samples[0])
	}
}

func TestNotificationFindingsAreNonFailing(t *testing.T) {
	world := cleanWorld()
	world.dups = []notification.DuplicateRow{{DedupeKey: "purchase:1", Count: 2}}
	world.unfollows = []notification.Notification{{ID: uuid.New(), RecipientID: uuid.New(), Category: notification.CategoryUnfollow, Visible: true}}
	world.unknown = []notification.Notification{{ID: uuid.New(), RecipientID: uuid.New(), Category: "mystery"}}

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Pass {
		t.Fatalf("warnings and info must not fail the audit: %+v", report.Issues)
	}
	if report.Totals.Warning != 2 || report.Totals.Info != 1 {
		t.Fatalf("totals = %+v", report.Totals)
	}
}

func TestIssuesSortedBySeverityThenCount(t *testing.T) {
	world := cleanWorld()
	world.txns[0].NetMinor = 800 // critical
	world.balances[0].TotalEarnings = 800
	world.balances[0].AvailableBalance = 800
	world.payables[0].Minor = 800
	world.dups = []notification.DuplicateRow{
		{DedupeKey: "a", Count: 2},
		{DedupeKey: "b", Count: 3},
	}

	svc := newAuditService(world, true)

	report, err := svc.Run(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Issues) < 2 {
		t.Fatalf("expected multiple issue groups, got %+v", report.Issues)
	}
	if report.Issues[0].Code != CodeNetAmountMismatch {
		t.Fatalf("critical issue must sort first, got %s", report.Issues[0].Code)
	}
}

func TestParamsClamping(t *testing.T) {
	p := Params{}.Clamped()
	if p.LookbackDays != 90 || p.TransactionLimit != 5000 || p.LedgerLimit != 20000 || p.SampleLimit != 25 {
		t.Fatalf("defaults not applied: %+v", p)
	}

	p = Params{LookbackDays: 100000, TransactionLimit: 1, SampleLimit: 1000}.Clamped()
	if p.LookbackDays != 3650 {
		t.Fatalf("lookback not clamped: %d", p.LookbackDays)
	}
	if p.TransactionLimit != 50 {
		t.Fatalf("transaction limit not raised to floor: %d", p.TransactionLimit)
	}
	if p.SampleLimit != 200 {
		t.Fatalf("sample limit not clamped: %d", p.SampleLimit)
	}
}
