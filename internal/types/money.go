// README: Money value object in minor units (paise for INR).
package types

import "math"

const CurrencyINR = "INR"

type Money struct {
	Amount   int64
	Currency string
}

// FromMajor converts a rupee amount such as 249.5 into minor units.
func FromMajor(v float64, currency string) Money {
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}

// Major returns the amount in whole currency units.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}
