// Package money содержит денежную арифметику платформы.
// Все суммы хранятся в основных единицах валюты (доллары), в минорные (центы)
// они переводятся только при обращении к платёжному шлюзу.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Поддерживаемые валюты сделок.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"

	DefaultCurrency = CurrencyUSD
)

var supportedCurrencies = map[string]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
}

// NormalizeCurrency приводит код валюты к верхнему регистру и подставляет USD
// для пустого значения. Второй результат false, если валюта не поддерживается.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, true
	}
	_, ok := supportedCurrencies[code]
	return code, ok
}

// Round2 округляет сумму до копеек (half-up для положительных значений).
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Round1 округляет значение до одного знака после запятой.
func Round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// ToMinorUnits переводит сумму в минорные единицы для платёжного шлюза.
func ToMinorUnits(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Split описывает распределение суммы сделки между платформой и исполнителем.
type Split struct {
	Gross      float64 `json:"gross"`
	Fee        float64 `json:"platform_fee"`
	NetForUser float64 `json:"freelancer_amount"`
}

// Commission считает комиссию платформы и чистую сумму исполнителю.
// fee = round2(gross*rate), net = round2(max(gross-fee, 0)).
func Commission(gross, rate float64) Split {
	g := decimal.NewFromFloat(gross)
	fee := g.Mul(decimal.NewFromFloat(rate)).Round(2)
	net := g.Sub(fee)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return Split{
		Gross:      gross,
		Fee:        fee.InexactFloat64(),
		NetForUser: net.Round(2).InexactFloat64(),
	}
}

// Fee считает комиссию с суммы по ставке, округлённую до копеек.
func Fee(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).Round(2).InexactFloat64()
}

// Sub возвращает a-b без ошибок представления float.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// Add возвращает a+b без ошибок представления float.
func Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}
