package tools

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"bizassist/internal/model"
)

var moneyPrinter = message.NewPrinter(language.English)

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// FormatMoney renders amount with the currency symbol, thousands separators
// and two decimals, e.g. £1,440.00.
func FormatMoney(amount float64, currency model.Currency) string {
	amount = Round2(amount)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + currency.Symbol() + moneyPrinter.Sprintf("%.2f", amount)
}

// InvoiceTotals computes subtotal, VAT and total for line items at rate.
// VAT and total are derived from the unrounded sum.
func InvoiceTotals(items []model.LineItem, rate float64) (subtotal, vat, total float64) {
	sum := 0.0
	for _, li := range items {
		sum += li.Amount()
	}
	vat = Round2(sum * rate)
	total = Round2(sum + vat)
	return Round2(sum), vat, total
}
