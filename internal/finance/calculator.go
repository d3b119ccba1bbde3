// Package finance вычисляет производные финансовые показатели договора аренды.
package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rental-billing/internal/model"
)

// CommissionRate задаёт фиксированную ставку комиссии продаж.
var CommissionRate = decimal.RequireFromString("0.10")

// Input содержит базовые поля договора, из которых строятся производные показатели.
type Input struct {
	CheckIn          time.Time
	CheckOut         time.Time
	ContractValue    decimal.Decimal
	Discount         decimal.Decimal
	HousekeeperValue decimal.Decimal
	ConciergeValue   decimal.Decimal
	Additional       model.AdditionalSales
}

// Nights возвращает число ночей между заездом и выездом с округлением вверх.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Compute вычисляет производные показатели. Функция чистая и детерминированная.
func Compute(in Input) model.SaleTotals {
	net := in.ContractValue.Sub(in.Discount)
	commission := net.Mul(CommissionRate)

	additional := decimal.Zero
	for _, v := range in.Additional.Amounts() {
		additional = additional.Add(v)
	}

	return model.SaleTotals{
		Nights:               Nights(in.CheckIn, in.CheckOut),
		NetValue:             net,
		SalesCommission:      commission,
		TotalAdditionalSales: additional,
		TotalRevenue:         net.Add(in.ConciergeValue).Add(additional),
		ContributionMargin:   net.Sub(commission).Sub(in.HousekeeperValue).Sub(additional),
	}
}

// Apply пересчитывает Totals договора из его базовых полей.
func Apply(s *model.Sale) {
	s.Totals = Compute(Input{
		CheckIn:          s.Stay.CheckIn,
		CheckOut:         s.Stay.CheckOut,
		ContractValue:    s.ContractValue,
		Discount:         s.Discount,
		HousekeeperValue: s.HousekeeperValue,
		ConciergeValue:   s.ConciergeValue,
		Additional:       s.Additional,
	})
}
