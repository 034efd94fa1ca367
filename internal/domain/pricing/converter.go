package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/shared/valueobject"
)

var (
	// ErrRateNotFound indicates the rate table has no entry for a currency
	ErrRateNotFound = errors.New("pricing: no exchange rate for currency")
	// ErrInvalidRate indicates a rate that is zero or negative
	ErrInvalidRate = errors.New("pricing: exchange rate must be positive")
)

// CurrencyConverter converts amounts between currencies using a rate table.
// Rates are expressed relative to USD: table[c] is how many units of c one
// USD buys. The converter is pure and safe for concurrent use; refreshing
// rates means building a new converter.
type CurrencyConverter struct {
	rates map[valueobject.Currency]decimal.Decimal
}

// DefaultRates returns a static rate table relative to USD.
// Production deployments replace this with rates from a feed at startup.
func DefaultRates() map[valueobject.Currency]decimal.Decimal {
	return map[valueobject.Currency]decimal.Decimal{
		valueobject.USD: decimal.NewFromInt(1),
		valueobject.EUR: decimal.NewFromFloat(0.92),
		valueobject.GBP: decimal.NewFromFloat(0.79),
		valueobject.JPY: decimal.NewFromFloat(148.0),
		valueobject.CAD: decimal.NewFromFloat(1.36),
		valueobject.AUD: decimal.NewFromFloat(1.52),
	}
}

// NewCurrencyConverter creates a converter from a USD-relative rate table
func NewCurrencyConverter(rates map[valueobject.Currency]decimal.Decimal) (*CurrencyConverter, error) {
	if len(rates) == 0 {
		return nil, errors.New("pricing: rate table is empty")
	}
	copied := make(map[valueobject.Currency]decimal.Decimal, len(rates))
	for currency, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRate, currency)
		}
		copied[currency] = rate
	}
	return &CurrencyConverter{rates: copied}, nil
}

// NewDefaultCurrencyConverter creates a converter with the static default table
func NewDefaultCurrencyConverter() *CurrencyConverter {
	c, err := NewCurrencyConverter(DefaultRates())
	if err != nil {
		// DefaultRates is a compile-time constant table; it cannot be invalid
		panic(err)
	}
	return c
}

// Convert converts an amount from one currency to another.
// Same-currency conversion returns the amount unchanged.
// The result is rounded to 2 decimal places (0 for JPY).
func (c *CurrencyConverter) Convert(amount decimal.Decimal, from, to valueobject.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, to)
	}
	converted := amount.Div(fromRate).Mul(toRate)
	return converted.Round(decimalPlaces(to)), nil
}

// ConvertMoney converts a Money value into the target currency
func (c *CurrencyConverter) ConvertMoney(m valueobject.Money, to valueobject.Currency) (valueobject.Money, error) {
	amount, err := c.Convert(m.Amount(), m.Currency(), to)
	if err != nil {
		return valueobject.Money{}, err
	}
	return valueobject.NewMoney(amount, to)
}

// HasRate returns true if the converter can convert to and from the currency
func (c *CurrencyConverter) HasRate(currency valueobject.Currency) bool {
	_, ok := c.rates[currency]
	return ok
}

// decimalPlaces returns the minor-unit precision for a currency
func decimalPlaces(currency valueobject.Currency) int32 {
	if currency == valueobject.JPY {
		return 0
	}
	return 2
}
