package pricing

import "strings"

// DropIn supplies the configured price of one drop-in credit. Consumption
// uses it whenever an explicit unit price is not carried in metadata.
type DropIn struct {
	unitCents int64
	currency  string
}

func NewDropIn(unitCents int64, currency string) *DropIn {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &DropIn{unitCents: unitCents, currency: currency}
}

func (p *DropIn) CreditUnitCents() int64 {
	return p.unitCents
}

func (p *DropIn) Currency() string {
	return p.currency
}
