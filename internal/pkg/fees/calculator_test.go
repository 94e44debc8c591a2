package fees

import "testing"

func TestForChargeProviderSchedules(t *testing.T) {
	calc := NewCalculator(15)

	tests := []struct {
		name     string
		gross    int64
		provider string
		want     Breakdown
	}{
		{
			name:     "stripe percent plus fixed",
			gross:    1000,
			provider: "stripe",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 59, NetMinor: 791},
		},
		{
			name:     "paystack percent only",
			gross:    1000,
			provider: "paystack",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 15, NetMinor: 835},
		},
		{
			name:     "flutterwave percent only",
			gross:    1000,
			provider: "flutterwave",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 14, NetMinor: 836},
		},
		{
			name:     "paypal percent plus fixed",
			gross:    1000,
			provider: "paypal",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 84, NetMinor: 766},
		},
		{
			name:     "unknown provider has no provider fee",
			gross:    1000,
			provider: "cash",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 0, NetMinor: 850},
		},
		{
			name:     "provider name is case insensitive",
			gross:    1000,
			provider: " Stripe ",
			want:     Breakdown{PlatformFeeMinor: 150, ProviderFeeMinor: 59, NetMinor: 791},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.ForCharge(tt.gross, tt.provider)
			if got != tt.want {
				t.Fatalf("ForCharge(%d, %q) = %+v, want %+v", tt.gross, tt.provider, got, tt.want)
			}
		})
	}
}

func TestForChargeInvariantHolds(t *testing.T) {
	calc := NewCalculator(15)

	for _, gross := range []int64{1, 10, 99, 100, 299, 1000, 123457} {
		for _, provider := range []string{"stripe", "paystack", "flutterwave", "paypal", ""} {
			b := calc.ForCharge(gross, provider)
			if b.PlatformFeeMinor+b.ProviderFeeMinor+b.NetMinor != gross {
				t.Fatalf("gross %d provider %q: %d + %d + %d != %d",
					gross, provider, b.PlatformFeeMinor, b.ProviderFeeMinor, b.NetMinor, gross)
			}
			if b.NetMinor < 0 || b.PlatformFeeMinor < 0 || b.ProviderFeeMinor < 0 {
				t.Fatalf("negative component in %+v", b)
			}
		}
	}
}

func TestForChargeTinyGrossCapsFees(t *testing.T) {
	calc := NewCalculator(15)

	b := calc.ForCharge(10, "stripe")
	if b.PlatformFeeMinor+b.ProviderFeeMinor+b.NetMinor != 10 {
		t.Fatalf("invariant broken: %+v", b)
	}
	if b.NetMinor != 0 {
		t.Fatalf("expected net floored at 0 when fees swallow the charge, got %d", b.NetMinor)
	}
}

func TestForChargeNonPositiveGross(t *testing.T) {
	calc := NewCalculator(15)

	if b := calc.ForCharge(0, "stripe"); b != (Breakdown{}) {
		t.Fatalf("expected zero breakdown, got %+v", b)
	}
	if b := calc.ForCharge(-5, "stripe"); b != (Breakdown{}) {
		t.Fatalf("expected zero breakdown, got %+v", b)
	}
}
