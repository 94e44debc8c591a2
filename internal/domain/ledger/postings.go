package ledger

// SettlementAmounts carries the reconciled money split for one settled
// charge. Amounts are minor currency units. The caller (fee calculator) is
// responsible for gross == platformFee + providerFee + net; the builders
// trust NetMinor when positive and otherwise derive it.
type SettlementAmounts struct {
	Currency         string
	CreatorID        string
	GrossMinor       int64
	PlatformFeeMinor int64
	ProviderFeeMinor int64
	NetMinor         int64
}

func (a SettlementAmounts) net() int64 {
	if a.NetMinor > 0 {
		return a.NetMinor
	}
	n := a.GrossMinor - a.PlatformFeeMinor - a.ProviderFeeMinor
	if n < 0 {
		return 0
	}
	return n
}

// BuildSettlementCreditPostings returns the double-entry legs for a settled
// charge: cash clearing takes the gross, the creator is owed the net, the
// platform books its fee as revenue and the provider fee as expense.
// Zero-amount legs are omitted.
func BuildSettlementCreditPostings(a SettlementAmounts) []Posting {
	return settlementPostings(a, Debit, Credit)
}

// BuildSettlementRefundPostings returns the exact mirror of
// BuildSettlementCreditPostings, reversing a prior settlement so every
// account nets to zero across the pair.
func BuildSettlementRefundPostings(a SettlementAmounts) []Posting {
	return settlementPostings(a, Credit, Debit)
}

func settlementPostings(a SettlementAmounts, gross, contra Direction) []Posting {
	postings := make([]Posting, 0, 4)

	add := func(account string, dir Direction, amount int64, counterpartyType, counterpartyID string) {
		if amount <= 0 {
			return
		}
		postings = append(postings, Posting{
			AccountCode:      account,
			Direction:        dir,
			AmountMinor:      amount,
			Currency:         a.Currency,
			CounterpartyType: counterpartyType,
			CounterpartyID:   counterpartyID,
		})
	}

	add(AccountPlatformCashClearing, gross, a.GrossMinor, "", "")
	add(AccountCreatorPayable, contra, a.net(), "creator", a.CreatorID)
	add(AccountPlatformRevenue, contra, a.PlatformFeeMinor, "", "")
	add(AccountProviderFeeExpense, contra, a.ProviderFeeMinor, "", "")

	return postings
}
