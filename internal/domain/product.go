package domain

// DefaultVariantLabel is what the catalog reports for a product with a single variant.
const DefaultVariantLabel = "Default Title"

// Variant is a catalog variant descriptor. Label is kept raw as the catalog reported it.
type Variant struct {
	ID        string
	Label     string
	Price     Money
	Available bool
}

type Product struct {
	ID       string
	Title    string
	ImageURL string
	Variants []Variant
}

// NormalizeVariantLabel maps the catalog's single-variant sentinel to an empty label.
func NormalizeVariantLabel(label string) string {
	if label == DefaultVariantLabel {
		return ""
	}
	return label
}

func findVariant(variants []Variant, id string) (Variant, bool) {
	for _, v := range variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

func cloneVariants(variants []Variant) []Variant {
	if variants == nil {
		return nil
	}
	out := make([]Variant, len(variants))
	copy(out, variants)
	return out
}
