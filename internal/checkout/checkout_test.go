package checkout_test

import (
	"testing"

	"github.com/nikolayk812/cartstate/internal/checkout"
	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestBuildURL(t *testing.T) {
	items := []domain.LineItem{
		{VariantID: "gid://shopify/ProductVariant/4411", Quantity: 2},
		{VariantID: "v1-s", Quantity: 1},
	}

	tests := []struct {
		name      string
		domain    string
		items     []domain.LineItem
		want      string
		wantError error
	}{
		{
			name:   "bare domain",
			domain: "the-website-preview.myshopify.com",
			items:  items,
			want:   "https://the-website-preview.myshopify.com/cart/4411:2,v1-s:1",
		},
		{
			name:   "scheme and trailing slash stripped",
			domain: "http://shop.example.com/",
			items:  items[:1],
			want:   "https://shop.example.com/cart/4411:2",
		},
		{
			name:      "empty cart",
			domain:    "shop.example.com",
			wantError: checkout.ErrEmptyCart,
		},
		{
			name:      "empty domain",
			domain:    "https://",
			items:     items,
			wantError: checkout.ErrEmptyDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkout.BuildURL(tt.domain, tt.items)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShippingProgress(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name          string
		subtotal      decimal.Decimal
		threshold     decimal.Decimal
		wantRemaining string
		wantPercent   string
		wantUnlocked  bool
	}{
		{"empty", decimal.Zero, checkout.DefaultThreshold, "200", "0", false},
		{"halfway", d("100"), checkout.DefaultThreshold, "100", "50", false},
		{"fraction", d("50.5"), checkout.DefaultThreshold, "149.5", "25.25", false},
		{"exactly", d("200"), checkout.DefaultThreshold, "0", "100", true},
		{"over", d("450"), checkout.DefaultThreshold, "0", "100", true},
		{"no threshold", d("10"), decimal.Zero, "0", "100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkout.ShippingProgress(tt.subtotal, tt.threshold)
			assert.Equal(t, tt.wantRemaining, got.Remaining.String())
			assert.Equal(t, tt.wantPercent, got.Percent.String())
			assert.Equal(t, tt.wantUnlocked, got.Unlocked)
		})
	}
}

func TestFormatPrice(t *testing.T) {
	usd := func(s string) domain.Money {
		return domain.Money{Amount: decimal.RequireFromString(s), Currency: currency.USD}
	}

	assert.Equal(t, "$225", checkout.FormatPrice(usd("225.00")))
	assert.Equal(t, "$1,234.5", checkout.FormatPrice(usd("1234.50")))
	assert.Equal(t, "$0.99", checkout.FormatPrice(usd("0.99")))
	assert.Equal(t, "-$5", checkout.FormatPrice(usd("-5")))
	assert.Equal(t, "$0", checkout.FormatPrice(domain.Money{Amount: decimal.Zero}))
}
