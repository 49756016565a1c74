package domain

// The operations below never modify the receiver; each returns a new Cart.

// AddItem adds one unit of the requested variant, falling back to the first
// variant when requestedVariantID is empty or unknown. It reports false, with
// the cart unchanged, only when the product has no variants.
func (c Cart) AddItem(p Product, requestedVariantID string) (Cart, bool) {
	if len(p.Variants) == 0 {
		return c, false
	}

	variant := p.Variants[0]
	if requestedVariantID != "" {
		if found, ok := findVariant(p.Variants, requestedVariantID); ok {
			variant = found
		}
	}

	next := c.Clone()
	if i := next.indexOf(variant.ID); i >= 0 {
		next.Items[i].Quantity++
		next.Items[i].AvailableVariants = cloneVariants(p.Variants)
		return next, true
	}

	next.Items = append(next.Items, LineItem{
		VariantID:         variant.ID,
		ProductID:         p.ID,
		Title:             p.Title,
		VariantLabel:      NormalizeVariantLabel(variant.Label),
		UnitPrice:         variant.Price,
		ImageURL:          p.ImageURL,
		Quantity:          1,
		AvailableVariants: cloneVariants(p.Variants),
	})

	return next, true
}

// RemoveItem drops the line item keyed by variantID, if any.
func (c Cart) RemoveItem(variantID string) Cart {
	i := c.indexOf(variantID)
	if i < 0 {
		return c
	}

	next := c.Clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	return next
}

// SetQuantityDelta shifts the quantity by delta with a floor of 1.
// Reaching the floor never removes the item.
func (c Cart) SetQuantityDelta(variantID string, delta int) Cart {
	i := c.indexOf(variantID)
	if i < 0 {
		return c
	}

	next := c.Clone()
	next.Items[i].Quantity = max(1, next.Items[i].Quantity+delta)
	return next
}

// SwitchVariant re-keys the line item from fromVariantID to toVariantID.
// When another line item already holds toVariantID the source quantity is
// folded into it and the source row disappears; the surviving row keeps its
// own price, label and image. Unknown source or a target missing from the
// source's variant snapshot leaves the cart unchanged.
func (c Cart) SwitchVariant(fromVariantID, toVariantID string) Cart {
	src := c.indexOf(fromVariantID)
	if src < 0 {
		return c
	}

	target, ok := findVariant(c.Items[src].AvailableVariants, toVariantID)
	if !ok {
		return c
	}

	if fromVariantID == toVariantID {
		return c
	}

	next := c.Clone()

	if dst := next.indexOf(toVariantID); dst >= 0 {
		next.Items[dst].Quantity += next.Items[src].Quantity
		next.Items = append(next.Items[:src], next.Items[src+1:]...)
		return next
	}

	item := &next.Items[src]
	item.VariantID = target.ID
	item.VariantLabel = NormalizeVariantLabel(target.Label)
	item.UnitPrice = target.Price

	return next
}

// Clear returns an empty cart.
func (c Cart) Clear() Cart {
	return Cart{}
}
