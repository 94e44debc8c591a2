package finaudit

import "time"

// Severity ranks a finding. Critical and error findings fail the audit.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// Issue codes.
const (
	CodeNetAmountMismatch        = "transaction_net_amount_mismatch"
	CodeWalletBalanceDrift       = "wallet_balance_drift"
	CodeMissingSettlementJournal = "transaction_missing_settlement_journal"
	CodeMissingRefundJournal     = "transaction_missing_refund_journal"
	CodeMissingPayoutJournal     = "payout_missing_journal"
	CodeUnbalancedJournal        = "journal_unbalanced"
	CodeLedgerWalletMismatch     = "ledger_wallet_balance_mismatch"
	CodeDuplicateDedupeKey       = "notification_duplicate_dedupe_key"
	CodeVisibleUnfollow          = "notification_visible_unfollow"
	CodeUnknownCategory          = "notification_unknown_category"
)

// Params bound an audit run. Zero values take the configured defaults and
// everything is clamped into sane ranges before use.
type Params struct {
	LookbackDays     int `json:"lookbackDays"`
	TransactionLimit int `json:"transactionLimit"`
	PayoutLimit      int `json:"payoutLimit"`
	LedgerLimit      int `json:"ledgerLimit"`
	SampleLimit      int `json:"sampleLimit"`
}

// Clamped returns params forced into the allowed ranges.
func (p Params) Clamped() Params {
	return Params{
		LookbackDays:     clamp(p.LookbackDays, 1, 3650, 90),
		TransactionLimit: clamp(p.TransactionLimit, 50, 20000, 5000),
		PayoutLimit:      clamp(p.PayoutLimit, 50, 20000, 5000),
		LedgerLimit:      clamp(p.LedgerLimit, 500, 100000, 20000),
		SampleLimit:      clamp(p.SampleLimit, 5, 200, 25),
	}
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IssueGroup aggregates all findings of one code with a bounded sample.
type IssueGroup struct {
	Code     string                   `json:"code"`
	Severity Severity                 `json:"severity"`
	Count    int                      `json:"count"`
	Summary  string                   `json:"summary"`
	Samples  []map[string]interface{} `json:"samples"`
}

// Totals counts findings per severity.
type Totals struct {
	Critical int `json:"critical"`
	Error    int `json:"error"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Coverage reports how much data the run actually inspected.
type Coverage struct {
	Transactions    int  `json:"transactions"`
	Payouts         int  `json:"payouts"`
	WalletBalances  int  `json:"walletBalances"`
	Journals        int  `json:"journals"`
	LedgerChecks    bool `json:"ledgerChecks"`
	LedgerTruncated bool `json:"ledgerTruncated"`
}

// Report is the audit output document.
type Report struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Parameters  Params       `json:"parameters"`
	Coverage    Coverage     `json:"coverage"`
	Totals      Totals       `json:"totals"`
	Issues      []IssueGroup `json:"issues"`
	Warnings    []string     `json:"warnings"`
	Pass        bool         `json:"pass"`
}
