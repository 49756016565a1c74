package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrEmptyDomain   = errors.New("shop domain is empty")
	DefaultThreshold = decimal.NewFromInt(200)
)

// BuildURL returns the storefront cart permalink: https://<domain>/cart/<id>:<qty>,...
func BuildURL(shopDomain string, items []domain.LineItem) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyCart
	}

	host := strings.TrimPrefix(strings.TrimPrefix(shopDomain, "https://"), "http://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return "", ErrEmptyDomain
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s:%d", lastSegment(item.VariantID), item.Quantity))
	}

	return "https://" + host + "/cart/" + strings.Join(parts, ","), nil
}

func lastSegment(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

type Progress struct {
	// Remaining is how much more is needed, never negative.
	Remaining decimal.Decimal
	// Percent is in [0, 100].
	Percent  decimal.Decimal
	Unlocked bool
}

// ShippingProgress reports how close subtotal is to the free-shipping threshold.
// A non-positive threshold is always unlocked.
func ShippingProgress(subtotal, threshold decimal.Decimal) Progress {
	hundred := decimal.NewFromInt(100)
	if !threshold.IsPositive() {
		return Progress{Remaining: decimal.Zero, Percent: hundred, Unlocked: true}
	}

	remaining := threshold.Sub(subtotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	percent := subtotal.Div(threshold).Mul(hundred)
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	if percent.IsNegative() {
		percent = decimal.Zero
	}

	return Progress{
		Remaining: remaining,
		Percent:   percent.Round(2),
		Unlocked:  remaining.IsZero(),
	}
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders m in en-US style with at most two fraction digits, e.g. "$1,234.5".
// A zero currency unit formats as USD.
func FormatPrice(m domain.Money) string {
	unit := m.Currency
	if unit == (currency.Unit{}) {
		unit = currency.USD
	}

	amount := m.Amount.InexactFloat64()
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	symbol := printer.Sprint(currency.NarrowSymbol(unit))
	digits := printer.Sprint(number.Decimal(amount, number.MinFractionDigits(0), number.MaxFractionDigits(2)))
	return sign + symbol + digits
}
