package fees

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Breakdown is the reconciled money split for one charge, in minor currency
// units. gross == PlatformFeeMinor + ProviderFeeMinor + NetMinor always holds.
type Breakdown struct {
	PlatformFeeMinor int64
	ProviderFeeMinor int64
	NetMinor         int64
}

// providerSchedule is a provider's published fee: percentage of gross plus a
// fixed per-charge amount in minor units.
type providerSchedule struct {
	percent decimal.Decimal
	fixed   int64
}

var providerSchedules = map[string]providerSchedule{
	"stripe":      {percent: decimal.NewFromFloat(2.9), fixed: 30},
	"paystack":    {percent: decimal.NewFromFloat(1.5), fixed: 0},
	"flutterwave": {percent: decimal.NewFromFloat(1.4), fixed: 0},
	"paypal":      {percent: decimal.NewFromFloat(3.49), fixed: 49},
}

// Calculator computes platform and provider fees. The ledger trusts its
// output verbatim.
type Calculator struct {
	platformPercent decimal.Decimal
}

func NewCalculator(platformPercent float64) *Calculator {
	return &Calculator{platformPercent: decimal.NewFromFloat(platformPercent)}
}

// ForCharge splits grossMinor into platform fee, provider fee and creator
// net. Unknown providers contribute no provider fee. Fees never exceed the
// gross; the creator net is floored at zero.
func (c *Calculator) ForCharge(grossMinor int64, provider string) Breakdown {
	if grossMinor <= 0 {
		return Breakdown{}
	}

	gross := decimal.NewFromInt(grossMinor)
	hundred := decimal.NewFromInt(100)

	platform := gross.Mul(c.platformPercent).Div(hundred).Round(0).IntPart()

	var providerFee int64
	if sched, ok := providerSchedules[strings.ToLower(strings.TrimSpace(provider))]; ok {
		providerFee = gross.Mul(sched.percent).Div(hundred).Round(0).IntPart() + sched.fixed
	}

	if platform > grossMinor {
		platform = grossMinor
	}
	if providerFee > grossMinor-platform {
		providerFee = grossMinor - platform
	}

	net := grossMinor - platform - providerFee
	if net < 0 {
		net = 0
	}

	return Breakdown{
		PlatformFeeMinor: platform,
		ProviderFeeMinor: providerFee,
		NetMinor:         net,
	}
}
