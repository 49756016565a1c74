package domain_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestAddItem(t *testing.T) {
	shirt := randomProduct(3)

	tests := []struct {
		name        string
		cart        domain.Cart
		product     domain.Product
		variantID   string
		wantOK      bool
		wantVariant string
		wantQty     int
		wantLen     int
	}{
		{
			name:        "requested variant: ok",
			product:     shirt,
			variantID:   shirt.Variants[1].ID,
			wantOK:      true,
			wantVariant: shirt.Variants[1].ID,
			wantQty:     1,
			wantLen:     1,
		},
		{
			name:        "no variant requested: falls back to first",
			product:     shirt,
			wantOK:      true,
			wantVariant: shirt.Variants[0].ID,
			wantQty:     1,
			wantLen:     1,
		},
		{
			name:        "unknown variant requested: falls back to first",
			product:     shirt,
			variantID:   gofakeit.UUID(),
			wantOK:      true,
			wantVariant: shirt.Variants[0].ID,
			wantQty:     1,
			wantLen:     1,
		},
		{
			name:        "existing line item: quantity incremented",
			cart:        mustAdd(t, domain.Cart{}, shirt, shirt.Variants[2].ID),
			product:     shirt,
			variantID:   shirt.Variants[2].ID,
			wantOK:      true,
			wantVariant: shirt.Variants[2].ID,
			wantQty:     2,
			wantLen:     1,
		},
		{
			name:    "product without variants: failure",
			product: domain.Product{ID: gofakeit.UUID(), Title: gofakeit.ProductName()},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.cart.Clone()

			got, ok := tt.cart.AddItem(tt.product, tt.variantID)
			require.Equal(t, tt.wantOK, ok)
			assertCart(t, before, tt.cart)

			if !tt.wantOK {
				assertCart(t, tt.cart, got)
				return
			}

			require.Len(t, got.Items, tt.wantLen)
			item, found := got.Item(tt.wantVariant)
			require.True(t, found)
			assert.Equal(t, tt.wantQty, item.Quantity)
			assert.Equal(t, tt.product.ID, item.ProductID)
			assert.Equal(t, tt.product.Title, item.Title)
			assert.Equal(t, tt.product.ImageURL, item.ImageURL)
			assertVariants(t, tt.product.Variants, item.AvailableVariants)
		})
	}
}

func TestAddItem_DefaultTitleNormalized(t *testing.T) {
	p := randomProduct(1)
	p.Variants[0].Label = domain.DefaultVariantLabel

	got, ok := domain.Cart{}.AddItem(p, "")
	require.True(t, ok)

	require.Len(t, got.Items, 1)
	assert.Empty(t, got.Items[0].VariantLabel)
	// the snapshot keeps the raw catalog label
	assert.Equal(t, domain.DefaultVariantLabel, got.Items[0].AvailableVariants[0].Label)
}

func TestAddItem_RefreshesSnapshotOnly(t *testing.T) {
	p := randomProduct(2)
	cart := mustAdd(t, domain.Cart{}, p, p.Variants[0].ID)
	original := cart.Items[0]

	changed := p
	changed.Title = gofakeit.ProductName()
	changed.Variants = append(cloneVariants(p.Variants), randomVariant(p.Variants[0].Price.Currency))
	changed.Variants[0].Price.Amount = changed.Variants[0].Price.Amount.Add(decimal.NewFromInt(5))

	got := mustAdd(t, cart, changed, p.Variants[0].ID)

	require.Len(t, got.Items, 1)
	item := got.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, original.Title, item.Title)
	assert.True(t, original.UnitPrice.Amount.Equal(item.UnitPrice.Amount), "price must stay frozen")
	assertVariants(t, changed.Variants, item.AvailableVariants)
}

func TestAddItem_RepeatAddsTwo(t *testing.T) {
	p := randomProduct(2)
	v := p.Variants[1].ID
	base := mustAdd(t, domain.Cart{}, randomProduct(1), "")

	got := mustAdd(t, mustAdd(t, base, p, v), p, v)

	count := 0
	for _, item := range got.Items {
		if item.VariantID == v {
			count++
			assert.Equal(t, 2, item.Quantity)
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, base.TotalQuantity()+2, got.TotalQuantity())
}

func TestRemoveItem(t *testing.T) {
	a, b := randomProduct(1), randomProduct(1)
	cart := mustAdd(t, mustAdd(t, domain.Cart{}, a, ""), b, "")

	tests := []struct {
		name      string
		variantID string
		wantIDs   []string
	}{
		{
			name:      "remove existing: ok",
			variantID: a.Variants[0].ID,
			wantIDs:   []string{b.Variants[0].ID},
		},
		{
			name:      "remove absent: no-op",
			variantID: gofakeit.UUID(),
			wantIDs:   []string{a.Variants[0].ID, b.Variants[0].ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cart.RemoveItem(tt.variantID)
			assert.Equal(t, tt.wantIDs, variantIDs(got))
			assert.Len(t, cart.Items, 2)
		})
	}
}

func TestSetQuantityDelta(t *testing.T) {
	p := randomProduct(1)
	id := p.Variants[0].ID
	cart := mustAdd(t, mustAdd(t, mustAdd(t, domain.Cart{}, p, id), p, id), p, id)

	tests := []struct {
		name      string
		variantID string
		delta     int
		wantQty   int
	}{
		{name: "increment", variantID: id, delta: 2, wantQty: 5},
		{name: "decrement", variantID: id, delta: -1, wantQty: 2},
		{name: "decrement to floor", variantID: id, delta: -2, wantQty: 1},
		{name: "far below floor: clamped", variantID: id, delta: -1000, wantQty: 1},
		{name: "zero delta", variantID: id, delta: 0, wantQty: 3},
		{name: "absent item: no-op", variantID: gofakeit.UUID(), delta: 4, wantQty: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cart.SetQuantityDelta(tt.variantID, tt.delta)
			require.Len(t, got.Items, 1)
			assert.Equal(t, tt.wantQty, got.Items[0].Quantity)
		})
	}
}

func TestSetQuantityDelta_FloorProperty(t *testing.T) {
	p := randomProduct(1)
	id := p.Variants[0].ID
	cart := mustAdd(t, domain.Cart{}, p, id)

	for range 100 {
		delta := gofakeit.IntRange(-50, 50)
		cart = cart.SetQuantityDelta(id, delta)
		require.Len(t, cart.Items, 1)
		require.GreaterOrEqual(t, cart.Items[0].Quantity, 1)
	}
}

func TestSwitchVariant_Merge(t *testing.T) {
	p := randomProduct(3)
	a, b := p.Variants[0].ID, p.Variants[1].ID

	cart := domain.Cart{}
	for range 2 {
		cart = mustAdd(t, cart, p, a)
	}
	for range 3 {
		cart = mustAdd(t, cart, p, b)
	}
	survivor, _ := cart.Item(b)

	got := cart.SwitchVariant(a, b)

	require.Len(t, got.Items, 1)
	_, found := got.Item(a)
	assert.False(t, found)

	merged, found := got.Item(b)
	require.True(t, found)
	assert.Equal(t, 5, merged.Quantity)
	survivor.Quantity = 5
	assertCart(t, domain.Cart{Items: []domain.LineItem{survivor}}, got)
}

func TestSwitchVariant_Simple(t *testing.T) {
	p := randomProduct(3)
	other := randomProduct(1)
	from, to := p.Variants[0], p.Variants[2]

	cart := mustAdd(t, domain.Cart{}, p, from.ID)
	cart = mustAdd(t, cart, other, "")
	cart = cart.SetQuantityDelta(from.ID, 3)
	before := cart.Items[0]

	got := cart.SwitchVariant(from.ID, to.ID)

	require.Len(t, got.Items, 2)
	item := got.Items[0]
	assert.Equal(t, to.ID, item.VariantID, "position must be preserved")
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, domain.NormalizeVariantLabel(to.Label), item.VariantLabel)
	assert.True(t, to.Price.Amount.Equal(item.UnitPrice.Amount))
	assert.Equal(t, to.Price.Currency, item.UnitPrice.Currency)
	assert.Equal(t, before.ImageURL, item.ImageURL)
	assert.Equal(t, before.Title, item.Title)
	assertVariants(t, before.AvailableVariants, item.AvailableVariants)
	assert.Equal(t, other.Variants[0].ID, got.Items[1].VariantID)
}

func TestSwitchVariant_NoOp(t *testing.T) {
	p := randomProduct(2)
	cart := mustAdd(t, domain.Cart{}, p, p.Variants[0].ID)

	tests := []struct {
		name string
		from string
		to   string
	}{
		{name: "unknown source", from: gofakeit.UUID(), to: p.Variants[1].ID},
		{name: "target not in snapshot", from: p.Variants[0].ID, to: gofakeit.UUID()},
		{name: "same variant", from: p.Variants[0].ID, to: p.Variants[0].ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cart.SwitchVariant(tt.from, tt.to)
			assertCart(t, cart, got)
		})
	}
}

func TestUniqueVariantIDs(t *testing.T) {
	products := []domain.Product{randomProduct(3), randomProduct(2), randomProduct(4)}
	cart := domain.Cart{}

	for range 300 {
		p := products[gofakeit.IntRange(0, len(products)-1)]
		v := p.Variants[gofakeit.IntRange(0, len(p.Variants)-1)].ID

		if gofakeit.Bool() || cart.IsEmpty() {
			cart = mustAdd(t, cart, p, v)
		} else {
			from := cart.Items[gofakeit.IntRange(0, cart.Len()-1)]
			to := from.AvailableVariants[gofakeit.IntRange(0, len(from.AvailableVariants)-1)].ID
			cart = cart.SwitchVariant(from.VariantID, to)
		}

		seen := map[string]bool{}
		for _, item := range cart.Items {
			require.False(t, seen[item.VariantID], "duplicate variant %s", item.VariantID)
			seen[item.VariantID] = true
		}
	}
}

func TestCartScenario(t *testing.T) {
	usd := currency.USD
	productX := domain.Product{
		ID:    "gid://shopify/Product/x",
		Title: "Product X",
		Variants: []domain.Variant{
			{ID: "v1", Label: "Small", Price: domain.Money{Amount: decimal.NewFromInt(10), Currency: usd}, Available: true},
			{ID: "v2", Label: "Large", Price: domain.Money{Amount: decimal.NewFromInt(12), Currency: usd}, Available: true},
		},
	}

	cart := mustAdd(t, domain.Cart{}, productX, "v1")
	assertRows(t, cart, row{"v1", 1, 10})

	cart = mustAdd(t, cart, productX, "v1")
	assertRows(t, cart, row{"v1", 2, 10})

	cart = cart.SwitchVariant("v1", "v2")
	assertRows(t, cart, row{"v2", 2, 12})

	cart = cart.SetQuantityDelta("v2", -5)
	assertRows(t, cart, row{"v2", 1, 12})

	cart = cart.RemoveItem("v2")
	assert.True(t, cart.IsEmpty())
}

func TestAggregates(t *testing.T) {
	usd := currency.USD
	p := domain.Product{
		ID: "p",
		Variants: []domain.Variant{
			{ID: "a", Price: domain.Money{Amount: decimal.RequireFromString("10.50"), Currency: usd}},
			{ID: "b", Price: domain.Money{Amount: decimal.RequireFromString("0.25"), Currency: usd}},
		},
	}

	empty := domain.Cart{}
	assert.Equal(t, 0, empty.TotalQuantity())
	assert.True(t, empty.Subtotal().Amount.IsZero())

	cart := mustAdd(t, mustAdd(t, empty, p, "a"), p, "a")
	cart = mustAdd(t, cart, p, "b")
	cart = cart.SetQuantityDelta("b", 2)

	assert.Equal(t, 5, cart.TotalQuantity())
	assert.Equal(t, "21.75", cart.Subtotal().Amount.StringFixed(2))
	assert.Equal(t, usd, cart.Subtotal().Currency)
}

func TestClear(t *testing.T) {
	cart := mustAdd(t, domain.Cart{}, randomProduct(2), "")
	assert.True(t, cart.Clear().IsEmpty())
	assert.Equal(t, 1, cart.Len())
}

type row struct {
	id    string
	qty   int
	price int64
}

func assertRows(t *testing.T, cart domain.Cart, want ...row) {
	t.Helper()

	require.Len(t, cart.Items, len(want))
	for i, w := range want {
		item := cart.Items[i]
		assert.Equal(t, w.id, item.VariantID)
		assert.Equal(t, w.qty, item.Quantity)
		assert.True(t, decimal.NewFromInt(w.price).Equal(item.UnitPrice.Amount), "price %s", item.UnitPrice.Amount)
	}
}

func mustAdd(t *testing.T, cart domain.Cart, p domain.Product, variantID string) domain.Cart {
	t.Helper()

	next, ok := cart.AddItem(p, variantID)
	require.True(t, ok)
	return next
}

func variantIDs(cart domain.Cart) []string {
	ids := make([]string, 0, cart.Len())
	for _, item := range cart.Items {
		ids = append(ids, item.VariantID)
	}
	return ids
}

func randomProduct(variants int) domain.Product {
	unit := randomCurrency()
	p := domain.Product{
		ID:       "gid://shopify/Product/" + gofakeit.UUID(),
		Title:    gofakeit.ProductName(),
		ImageURL: gofakeit.URL(),
	}
	for range variants {
		p.Variants = append(p.Variants, randomVariant(unit))
	}
	return p
}

func randomVariant(unit currency.Unit) domain.Variant {
	return domain.Variant{
		ID:        "gid://shopify/ProductVariant/" + gofakeit.UUID(),
		Label:     gofakeit.RandomString([]string{"Small", "Medium", "Large", "Black", "Blue"}),
		Price:     domain.Money{Amount: decimal.NewFromFloat(gofakeit.Price(1, 100)), Currency: unit},
		Available: gofakeit.Bool(),
	}
}

func randomCurrency() currency.Unit {
	var (
		result currency.Unit
		err    error
	)

	for {
		// tag is not a recognized currency
		result, err = currency.ParseISO(gofakeit.CurrencyShort())
		if err == nil {
			break
		}
	}

	return result
}

func cloneVariants(in []domain.Variant) []domain.Variant {
	return append([]domain.Variant(nil), in...)
}

var cmpOpts = cmp.Options{
	cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	}),
	cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	}),
	cmpopts.EquateEmpty(),
}

func assertCart(t *testing.T, expected, actual domain.Cart) {
	t.Helper()

	diff := cmp.Diff(expected, actual, cmpOpts)
	assert.Empty(t, diff)
}

func assertVariants(t *testing.T, expected, actual []domain.Variant) {
	t.Helper()

	diff := cmp.Diff(expected, actual, cmpOpts)
	assert.Empty(t, diff)
}
