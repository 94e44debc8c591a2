package finaudit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/domain/notification"
	"github.com/fotofair/fotofair-api/internal/domain/payout"
	"github.com/fotofair/fotofair-api/internal/domain/transaction"
	"github.com/fotofair/fotofair-api/internal/domain/wallet"
)

// Data sources. Narrow interfaces so the auditor can run against fakes; the
// concrete repositories satisfy them directly.

type TransactionSource interface {
	ListByStatusSince(ctx context.Context, statuses []transaction.Status, since time.Time, limit int) ([]transaction.Transaction, error)
}

type PayoutSource interface {
	ListByStatusSince(ctx context.Context, statuses []payout.Status, since time.Time, limit int) ([]payout.Payout, error)
}

type WalletSource interface {
	ListBalances(ctx context.Context, limit int) ([]wallet.Balance, error)
}

type LedgerSource interface {
	ListJournalsSince(ctx context.Context, since time.Time, limit int) ([]ledger.Journal, error)
	ListPostingsByJournalIDs(ctx context.Context, journalIDs []uuid.UUID) ([]ledger.Posting, error)
	CreatorPayableOutstanding(ctx context.Context) ([]ledger.CreatorPayable, error)
}

type NotificationSource interface {
	DuplicateVisibleDedupeKeys(ctx context.Context, limit int) ([]notification.DuplicateRow, error)
	VisibleUnfollows(ctx context.Context, limit int) ([]notification.Notification, error)
	UnknownCategories(ctx context.Context, limit int) ([]notification.Notification, error)
}

// Service is the read-only reconciliation auditor. It re-derives expected
// balances from raw rows and reports drift; it never mutates ledger state.
type Service struct {
	txns          TransactionSource
	payouts       PayoutSource
	wallets       WalletSource
	journals      LedgerSource
	notifications NotificationSource
	ledgerEnabled bool
}

func NewService(txns TransactionSource, payouts PayoutSource, wallets WalletSource, journals LedgerSource, notifications NotificationSource, ledgerEnabled bool) *Service {
	return &Service{
		txns:          txns,
		payouts:       payouts,
		wallets:       wallets,
		journals:      journals,
		notifications: notifications,
		ledgerEnabled: ledgerEnabled,
	}
}

// Run executes the full audit pipeline with clamped parameters.
func (s *Service) Run(ctx context.Context, params Params) (*Report, error) {
	params = params.Clamped()
	since := time.Now().UTC().AddDate(0, 0, -params.LookbackDays)

	c := newCollector(params.SampleLimit)
	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Parameters:  params,
		Warnings:    []string{},
	}

	txns, err := s.txns.ListByStatusSince(ctx,
		[]transaction.Status{transaction.StatusSucceeded, transaction.StatusRefunded},
		since, params.TransactionLimit)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	payouts, err := s.payouts.ListByStatusSince(ctx,
		[]payout.Status{payout.StatusPending, payout.StatusCompleted},
		since, params.PayoutLimit)
	if err != nil {
		return nil, fmt.Errorf("load payouts: %w", err)
	}

	balances, err := s.wallets.ListBalances(ctx, params.TransactionLimit)
	if err != nil {
		return nil, fmt.Errorf("load wallet balances: %w", err)
	}

	report.Coverage.Transactions = len(txns)
	report.Coverage.Payouts = len(payouts)
	report.Coverage.WalletBalances = len(balances)

	s.checkArithmetic(c, txns)
	s.checkWalletAggregates(c, txns, payouts, balances)

	if s.ledgerEnabled {
		report.Coverage.LedgerChecks = true
		s.checkLedger(ctx, c, report, since, params, txns, payouts, balances)
	}

	s.checkNotifications(ctx, c, report, params)

	report.Issues = c.finalize()
	for _, issue := range report.Issues {
		switch issue.Severity {
		case SeverityCritical:
			report.Totals.Critical += issue.Count
		case SeverityError:
			report.Totals.Error += issue.Count
		case SeverityWarning:
			report.Totals.Warning += issue.Count
		default:
			report.Totals.Info += issue.Count
		}
	}
	report.Pass = report.Totals.Critical == 0 && report.Totals.Error == 0

	log.Info().
		Int("transactions", report.Coverage.Transactions).
		Int("payouts", report.Coverage.Payouts).
		Int("issues", len(report.Issues)).
		Bool("pass", report.Pass).
		Msg("finance audit completed")

	return report, nil
}

// checkArithmetic verifies gross - platform_fee - provider_fee == net for
// every transaction in window.
func (s *Service) checkArithmetic(c *collector, txns []transaction.Transaction) {
	for _, t := range txns {
		expected := t.GrossMinor - t.PlatformFeeMinor - t.EffectiveProviderFee()
		if expected == t.NetMinor {
			continue
		}
		c.add(CodeNetAmountMismatch, SeverityCritical,
			"transaction net amount does not equal gross minus fees",
			map[string]interface{}{
				"transaction_id": t.ID.String(),
				"gross_minor":    t.GrossMinor,
				"platform_fee":   t.PlatformFeeMinor,
				"provider_fee":   t.EffectiveProviderFee(),
				"net_minor":      t.NetMinor,
				"expected_net":   expected,
			})
	}
}

// checkWalletAggregates recomputes each wallet's cached totals from the raw
// rows loaded for this window and flags divergence.
func (s *Service) checkWalletAggregates(c *collector, txns []transaction.Transaction, payouts []payout.Payout, balances []wallet.Balance) {
	type agg struct {
		earnings int64
		paidOut  int64
		pending  int64
	}
	byWallet := make(map[uuid.UUID]*agg)
	get := func(id uuid.UUID) *agg {
		a, ok := byWallet[id]
		if !ok {
			a = &agg{}
			byWallet[id] = a
		}
		return a
	}

	for _, t := range txns {
		if t.Status == transaction.StatusSucceeded {
			get(t.WalletID).earnings += t.NetMinor
		}
	}
	for _, p := range payouts {
		switch p.Status {
		case payout.StatusCompleted:
			get(p.WalletID).paidOut += p.AmountMinor
		case payout.StatusPending:
			get(p.WalletID).pending += p.AmountMinor
		}
	}

	for _, b := range balances {
		a := get(b.WalletID)
		expectedAvailable := a.earnings - a.paidOut

		if b.TotalEarnings != a.earnings || b.TotalPaidOut != a.paidOut ||
			b.PendingPayout != a.pending || b.AvailableBalance != expectedAvailable {
			c.add(CodeWalletBalanceDrift, SeverityError,
				"cached wallet balance diverges from raw transaction and payout sums",
				map[string]interface{}{
					"wallet_id":          b.WalletID.String(),
					"cached_earnings":    b.TotalEarnings,
					"expected_earnings":  a.earnings,
					"cached_paid_out":    b.TotalPaidOut,
					"expected_paid_out":  a.paidOut,
					"cached_pending":     b.PendingPayout,
					"expected_pending":   a.pending,
					"cached_available":   b.AvailableBalance,
					"expected_available": expectedAvailable,
				})
		}
	}
}

// checkLedger verifies journal coverage of transactions and payouts, per-
// journal balance, and the ledger-vs-wallet payable view.
func (s *Service) checkLedger(ctx context.Context, c *collector, report *Report, since time.Time, params Params, txns []transaction.Transaction, payouts []payout.Payout, balances []wallet.Balance) {
	journals, err := s.journals.ListJournalsSince(ctx, since, params.LedgerLimit)
	if err != nil {
		if errors.Is(err, ledger.ErrSchemaUnavailable) {
			report.Warnings = append(report.Warnings, "ledger schema unavailable, ledger checks skipped")
			return
		}
		report.Warnings = append(report.Warnings, "failed to load ledger journals: "+err.Error())
		return
	}

	report.Coverage.Journals = len(journals)
	if len(journals) >= params.LedgerLimit {
		report.Coverage.LedgerTruncated = true
		report.Warnings = append(report.Warnings,
			"ledger journal limit reached, coverage checks are incomplete")
	}

	// Index journals by flow + source id and by the transaction_id metadata
	// back-reference.
	type flowKey struct {
		flow     ledger.FlowType
		sourceID string
	}
	covered := make(map[flowKey]bool, len(journals))
	for _, j := range journals {
		covered[flowKey{j.FlowType, j.SourceID}] = true
		if j.Metadata.TransactionID != "" {
			covered[flowKey{j.FlowType, j.Metadata.TransactionID}] = true
		}
	}

	for _, t := range txns {
		id := t.ID.String()
		switch t.Status {
		case transaction.StatusSucceeded:
			if !covered[flowKey{ledger.FlowType(t.FlowType), id}] {
				c.add(CodeMissingSettlementJournal, SeverityCritical,
					"succeeded transaction has no settlement journal",
					map[string]interface{}{"transaction_id": id, "flow_type": string(t.FlowType)})
			}
		case transaction.StatusRefunded:
			if !covered[flowKey{ledger.FlowRefund, id}] {
				c.add(CodeMissingRefundJournal, SeverityError,
					"refunded transaction has no refund journal",
					map[string]interface{}{"transaction_id": id})
			}
		}
	}

	for _, p := range payouts {
		if p.Status != payout.StatusCompleted {
			continue
		}
		if !covered[flowKey{ledger.FlowPayout, p.ID.String()}] {
			c.add(CodeMissingPayoutJournal, SeverityCritical,
				"completed payout has no payout journal",
				map[string]interface{}{"payout_id": p.ID.String()})
		}
	}

	s.checkJournalBalance(ctx, c, report, journals)
	s.checkLedgerWalletView(ctx, c, report, balances)
}

// checkJournalBalance re-sums every journal's postings. The recorder makes
// an unbalanced journal structurally impossible, so a hit here means a
// recorder bypass or a bug and is treated as a high-priority signal.
func (s *Service) checkJournalBalance(ctx context.Context, c *collector, report *Report, journals []ledger.Journal) {
	if len(journals) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(journals))
	for i, j := range journals {
		ids[i] = j.ID
	}

	postings, err := s.journals.ListPostingsByJournalIDs(ctx, ids)
	if err != nil {
		report.Warnings = append(report.Warnings, "failed to load ledger postings: "+err.Error())
		return
	}

	type sums struct{ debit, credit int64 }
	byJournal := make(map[uuid.UUID]*sums, len(journals))
	for _, p := range postings {
		s, ok := byJournal[p.JournalID]
		if !ok {
			s = &sums{}
			byJournal[p.JournalID] = s
		}
		switch p.Direction {
		case ledger.Debit:
			s.debit += p.AmountMinor
		case ledger.Credit:
			s.credit += p.AmountMinor
		}
	}

	for id, totals := range byJournal {
		if totals.debit == totals.credit {
			continue
		}
		c.add(CodeUnbalancedJournal, SeverityCritical,
			"journal debit total does not equal credit total",
			map[string]interface{}{
				"journal_id":   id.String(),
				"debit_total":  totals.debit,
				"credit_total": totals.credit,
			})
	}
}

// checkLedgerWalletView compares the ledger-derived creator payable
// outstanding against the cached wallet available balance per
// creator+currency.
func (s *Service) checkLedgerWalletView(ctx context.Context, c *collector, report *Report, balances []wallet.Balance) {
	payables, err := s.journals.CreatorPayableOutstanding(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrSchemaUnavailable) {
			return
		}
		report.Warnings = append(report.Warnings, "failed to derive creator payable view: "+err.Error())
		return
	}

	type key struct {
		creator  string
		currency string
	}
	walletView := make(map[key]int64)
	for _, b := range balances {
		walletView[key{b.CreatorID.String(), b.Currency}] += b.AvailableBalance
	}

	for _, p := range payables {
		// A creator the wallet view has never seen counts as zero: payable
		// with no wallet row is exactly the drift this check exists for.
		cached := walletView[key{p.CreatorID, p.Currency}]
		if cached == p.Minor {
			continue
		}
		c.add(CodeLedgerWalletMismatch, SeverityError,
			"ledger creator payable diverges from cached wallet available balance",
			map[string]interface{}{
				"creator_id":       p.CreatorID,
				"currency":         p.Currency,
				"ledger_payable":   p.Minor,
				"wallet_available": cached,
			})
	}
}

// checkNotifications runs the bundled secondary integrity checks. Failures
// here degrade to report warnings rather than failing the audit.
func (s *Service) checkNotifications(ctx context.Context, c *collector, report *Report, params Params) {
	if s.notifications == nil {
		return
	}

	dups, err := s.notifications.DuplicateVisibleDedupeKeys(ctx, params.SampleLimit)
	if err != nil {
		report.Warnings = append(report.Warnings, "notification dedupe check skipped: "+err.Error())
	} else {
		for _, d := range dups {
			c.add(CodeDuplicateDedupeKey, SeverityWarning,
				"visible notifications share a dedupe key",
				map[string]interface{}{"dedupe_key": d.DedupeKey, "count": d.Count})
		}
	}

	unfollows, err := s.notifications.VisibleUnfollows(ctx, params.SampleLimit)
	if err != nil {
		report.Warnings = append(report.Warnings, "notification unfollow check skipped: "+err.Error())
	} else {
		for _, n := range unfollows {
			c.add(CodeVisibleUnfollow, SeverityWarning,
				"unfollow notification is visible, violating display policy",
				map[string]interface{}{"notification_id": n.ID.String(), "recipient_id": n.RecipientID.String()})
		}
	}

	unknown, err := s.notifications.UnknownCategories(ctx, params.SampleLimit)
	if err != nil {
		report.Warnings = append(report.Warnings, "notification category check skipped: "+err.Error())
	} else {
		for _, n := range unknown {
			c.add(CodeUnknownCategory, SeverityInfo,
				"notification carries an unknown category",
				map[string]interface{}{"notification_id": n.ID.String(), "category": string(n.Category)})
		}
	}
}

// collector aggregates findings into severity-ordered issue groups with
// bounded samples.
type collector struct {
	sampleLimit int
	order       []string
	groups      map[string]*IssueGroup
}

func newCollector(sampleLimit int) *collector {
	return &collector{sampleLimit: sampleLimit, groups: make(map[string]*IssueGroup)}
}

func (c *collector) add(code string, severity Severity, summary string, sample map[string]interface{}) {
	g, ok := c.groups[code]
	if !ok {
		g = &IssueGroup{Code: code, Severity: severity, Summary: summary, Samples: []map[string]interface{}{}}
		c.groups[code] = g
		c.order = append(c.order, code)
	}
	g.Count++
	if len(g.Samples) < c.sampleLimit {
		g.Samples = append(g.Samples, sample)
	}
}

func (c *collector) finalize() []IssueGroup {
	issues := make([]IssueGroup, 0, len(c.groups))
	for _, code := range c.order {
		issues = append(issues, *c.groups[code])
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.rank() != issues[j].Severity.rank() {
			return issues[i].Severity.rank() > issues[j].Severity.rank()
		}
		return issues[i].Count > issues[j].Count
	})
	return issues
}
