package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rental-billing/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNights(t *testing.T) {
	base := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     int
	}{
		{"three whole days", base, base.AddDate(0, 0, 3), 3},
		{"one night", base, base.Add(24 * time.Hour), 1},
		{"partial day rounds up", base.Add(15 * time.Hour), base.AddDate(0, 0, 2).Add(11 * time.Hour), 2},
		{"a few hours is one night", base, base.Add(2 * time.Hour), 1},
		{"reversed uses absolute value", base.AddDate(0, 0, 3), base, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Nights(tt.checkIn, tt.checkOut))
		})
	}
}

func TestCompute_Scenario(t *testing.T) {
	in := Input{
		CheckIn:          time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:         time.Date(2025, time.June, 13, 0, 0, 0, 0, time.UTC),
		ContractValue:    d("3000"),
		Discount:         d("200"),
		HousekeeperValue: d("150"),
		ConciergeValue:   d("100"),
	}

	got := Compute(in)

	assert.Equal(t, 3, got.Nights)
	assert.True(t, got.NetValue.Equal(d("2800")), "net = %s", got.NetValue)
	assert.True(t, got.SalesCommission.Equal(d("280")), "commission = %s", got.SalesCommission)
	assert.True(t, got.TotalAdditionalSales.IsZero())
	assert.True(t, got.TotalRevenue.Equal(d("2900")), "revenue = %s", got.TotalRevenue)
	assert.True(t, got.ContributionMargin.Equal(d("2370")), "margin = %s", got.ContributionMargin)
}

func TestCompute_Relations(t *testing.T) {
	inputs := []Input{
		{ContractValue: d("100"), Discount: d("250")},
		{ContractValue: d("1234.56"), Discount: d("0.01"), HousekeeperValue: d("80")},
		{
			ContractValue:    d("5000"),
			Discount:         d("500"),
			HousekeeperValue: d("300"),
			ConciergeValue:   d("120"),
			Additional: model.AdditionalSales{
				Transfer:      d("150"),
				Groceries:     d("99.90"),
				Tours:         d("0"),
				Chef:          d("400"),
				CarRental:     d("320"),
				ExtraCleaning: d("60"),
			},
		},
	}

	for _, in := range inputs {
		got := Compute(in)

		require.True(t, got.SalesCommission.Equal(got.NetValue.Mul(d("0.10"))))
		margin := got.NetValue.Sub(got.SalesCommission).Sub(in.HousekeeperValue).Sub(got.TotalAdditionalSales)
		assert.True(t, got.ContributionMargin.Equal(margin))
		assert.True(t, got.TotalRevenue.Equal(got.NetValue.Add(in.ConciergeValue).Add(got.TotalAdditionalSales)))
	}
}

func TestCompute_NegativeNetIsNotClamped(t *testing.T) {
	got := Compute(Input{ContractValue: d("100"), Discount: d("250")})

	assert.True(t, got.NetValue.Equal(d("-150")))
	assert.True(t, got.SalesCommission.Equal(d("-15")))
}

func TestCompute_AdditionalSalesSum(t *testing.T) {
	got := Compute(Input{
		Additional: model.AdditionalSales{
			Transfer: d("10"),
			Chef:     d("20.50"),
		},
	})

	assert.True(t, got.TotalAdditionalSales.Equal(d("30.50")))
}

func TestApply_Idempotent(t *testing.T) {
	s := &model.Sale{
		Stay: model.StayPeriod{
			CheckIn:  time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
			CheckOut: time.Date(2025, time.June, 13, 0, 0, 0, 0, time.UTC),
		},
		ContractValue:    d("3000"),
		Discount:         d("200"),
		HousekeeperValue: d("150"),
		ConciergeValue:   d("100"),
	}

	Apply(s)
	first := s.Totals
	Apply(s)

	assert.Equal(t, first, s.Totals)
	assert.Equal(t, 3, s.Totals.Nights)
}
