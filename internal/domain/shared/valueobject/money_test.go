package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency_IsValid(t *testing.T) {
	assert.True(t, USD.IsValid())
	assert.True(t, EUR.IsValid())
	assert.True(t, JPY.IsValid())
	assert.False(t, Currency("").IsValid())
	assert.False(t, Currency("BTC").IsValid())
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.NewFromFloat(19.99), USD)
	require.NoError(t, err)
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(19.99)))
	assert.Equal(t, USD, m.Currency())

	_, err = NewMoney(decimal.NewFromInt(1), "")
	assert.Error(t, err)
}

func TestNewMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("42.50", EUR)
	require.NoError(t, err)
	assert.Equal(t, "42.5 EUR", m.String())

	_, err = NewMoneyFromString("not-a-number", EUR)
	assert.Error(t, err)
}

func TestMoney_Add(t *testing.T) {
	a := NewMoneyUSD(decimal.NewFromInt(10))
	b := NewMoneyUSD(decimal.NewFromInt(5))

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromInt(15)))

	eur, _ := NewMoneyFromFloat(5, EUR)
	_, err = a.Add(eur)
	assert.Error(t, err)
}

func TestMoney_Sub(t *testing.T) {
	a := NewMoneyUSD(decimal.NewFromInt(10))
	b := NewMoneyUSD(decimal.NewFromInt(15))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
}

func TestMoney_Mul(t *testing.T) {
	m := NewMoneyUSD(decimal.NewFromInt(100))
	decayed := m.Mul(decimal.NewFromFloat(0.9))
	assert.True(t, decayed.Amount().Equal(decimal.NewFromInt(90)))
}

func TestMoney_Round(t *testing.T) {
	m := NewMoneyUSD(decimal.NewFromFloat(9.999))
	assert.Equal(t, "10 USD", m.Round(2).String())
}

func TestMoney_Cmp(t *testing.T) {
	a := NewMoneyUSD(decimal.NewFromInt(10))
	b := NewMoneyUSD(decimal.NewFromInt(20))

	cmp, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	eur, _ := NewMoneyFromFloat(20, EUR)
	_, err = a.Cmp(eur)
	assert.Error(t, err)
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	original, _ := NewMoneyFromString("123.45", GBP)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equals(decoded))
}

func TestZero(t *testing.T) {
	z := Zero(JPY)
	assert.True(t, z.IsZero())
	assert.Equal(t, JPY, z.Currency())
}
