package domain

import "github.com/shopspring/decimal"

// Cart is the ordered collection of line items. Order is display order.
type Cart struct {
	Items []LineItem
}

// LineItem is one row in the cart, keyed by VariantID.
type LineItem struct {
	VariantID    string
	ProductID    string
	Title        string
	VariantLabel string
	UnitPrice    Money
	ImageURL     string
	Quantity     int

	// AvailableVariants is the product's variant roster at add time.
	AvailableVariants []Variant
}

func (c Cart) Len() int {
	return len(c.Items)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line item keyed by variantID.
func (c Cart) Item(variantID string) (LineItem, bool) {
	if i := c.indexOf(variantID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// TotalQuantity is the sum of all line item quantities.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal is the sum of unit price times quantity. The currency is taken
// from the first line item; mixed-currency carts are not reconciled.
func (c Cart) Subtotal() Money {
	if len(c.Items) == 0 {
		return Money{Amount: decimal.Zero}
	}

	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.UnitPrice.Times(item.Quantity).Amount)
	}

	return Money{Amount: sum, Currency: c.Items[0].UnitPrice.Currency}
}

// Clone returns a deep copy that shares no slices with c.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	for i, item := range c.Items {
		item.AvailableVariants = cloneVariants(item.AvailableVariants)
		items[i] = item
	}
	return Cart{Items: items}
}

func (c Cart) indexOf(variantID string) int {
	for i, item := range c.Items {
		if item.VariantID == variantID {
			return i
		}
	}
	return -1
}
