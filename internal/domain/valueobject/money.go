package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
)

// Верхние границы сроков: график строится помесячно, строка на каждый месяц.
const (
	MaxTenureMonths = 360
	MaxLeaseMonths  = 120
)

// Точность промежуточных степеней в compound.
const compoundPrecision = 24

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// MonthlyRate переводит годовую ставку в процентах в месячную долю: annual/100/12.
func MonthlyRate(annualRatePercent float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRatePercent).Div(hundred).Div(twelve)
}

// EMI рассчитывает аннуитетный платёж P·r·(1+r)^n / ((1+r)^n − 1),
// округлённый до целой денежной единицы. При нулевой ставке платёж равен P/n.
func EMI(principal, annualRatePercent float64, tenureMonths int) (float64, error) {
	if principal <= 0 {
		return 0, apperror.Validation("сумма займа должна быть положительной")
	}
	if annualRatePercent < 0 {
		return 0, apperror.Validation("процентная ставка не может быть отрицательной")
	}
	if tenureMonths <= 0 {
		return 0, apperror.Validation("срок займа должен быть не меньше одного месяца")
	}
	if tenureMonths > MaxTenureMonths {
		return 0, apperror.Validation("срок займа слишком большой").With("max_tenure", MaxTenureMonths)
	}

	p := decimal.NewFromFloat(principal)
	n := decimal.NewFromInt(int64(tenureMonths))
	r := MonthlyRate(annualRatePercent)

	if r.IsZero() {
		return p.Div(n).Round(0).InexactFloat64(), nil
	}

	growth := compound(decimal.NewFromInt(1).Add(r), tenureMonths)
	emi := p.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))

	return emi.Round(0).InexactFloat64(), nil
}

// compound возводит base в натуральную степень двоичным возведением,
// округляя промежуточные значения до compoundPrecision знаков.
func compound(base decimal.Decimal, power int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for power > 0 {
		if power&1 == 1 {
			result = result.Mul(base).Round(compoundPrecision)
		}
		base = base.Mul(base).Round(compoundPrecision)
		power >>= 1
	}
	return result
}

// PercentOf возвращает amount × percent / 100, округлённое до копеек.
func PercentOf(amount, percent float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(hundred).
		Round(2).
		InexactFloat64()
}

// Sum складывает суммы в decimal, чтобы не копить ошибку float.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}
