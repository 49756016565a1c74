package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var ErrNotFound = errors.New("product not found")

// Source resolves product descriptors for add-to-cart and browsing.
type Source interface {
	Product(ctx context.Context, productID string) (domain.Product, error)
	Products(ctx context.Context) ([]domain.Product, error)
}

type Static struct {
	byID  map[string]domain.Product
	order []string
}

var _ Source = (*Static)(nil)

// NewStatic indexes products by ID. A later product with the same ID replaces the earlier one.
func NewStatic(products ...domain.Product) *Static {
	s := &Static{byID: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		if _, ok := s.byID[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.byID[p.ID] = p
	}
	return s
}

func (s *Static) Product(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := s.byID[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", productID, ErrNotFound)
	}
	return p, nil
}

// Products lists the catalog in insertion order.
func (s *Static) Products(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

type mockVariant struct {
	id, title, price string
}

// Fallback is the storefront's offline collection, used when no live catalog is configured.
func Fallback() *Static {
	return NewStatic(
		mockProduct("1", "Casual Shirt", "225.00", "https://images.unsplash.com/photo-1596755094514-f87e34085b2c?auto=format&fit=crop&q=80&w=800",
			mockVariant{"v1-s", "Small", "225.00"},
			mockVariant{"v1-m", "Medium", "235.00"},
			mockVariant{"v1-l", "Large", "245.00"},
		),
		mockProduct("2", "Chrono Watch", "125.00", "https://images.unsplash.com/photo-1523381210434-271e8be1f52b?auto=format&fit=crop&q=80&w=800"),
		mockProduct("3", "Cashmere Scarf", "125.00", "https://images.unsplash.com/photo-1507679799987-c73779587ccf?auto=format&fit=crop&q=80&w=800"),
		mockProduct("4", "Ceramic Lamp", "125.00", "https://images.unsplash.com/photo-1544022613-e87ca75a784a?auto=format&fit=crop&q=80&w=800"),
		mockProduct("5", "Premium Jacket", "125.00", "https://images.unsplash.com/photo-1545291730-faff8ca1d4b0?auto=format&fit=crop&q=80&w=800"),
		mockProduct("6", "Hoodie Winter", "25.00", "https://images.unsplash.com/photo-1515886657613-9f3515b0c78f?auto=format&fit=crop&q=80&w=800",
			mockVariant{"v6-bk", "Black", "25.00"},
			mockVariant{"v6-bl", "Blue", "25.00"},
		),
	)
}

func mockProduct(id, title, price, image string, variants ...mockVariant) domain.Product {
	if len(variants) == 0 {
		variants = []mockVariant{{id: "gid://shopify/ProductVariant/" + id, title: "Default", price: price}}
	}

	p := domain.Product{
		ID:       "gid://shopify/Product/" + id,
		Title:    title,
		ImageURL: image,
		Variants: make([]domain.Variant, 0, len(variants)),
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, domain.Variant{
			ID:    v.id,
			Label: v.title,
			Price: domain.Money{
				Amount:   decimal.RequireFromString(v.price),
				Currency: currency.USD,
			},
			Available: true,
		})
	}
	return p
}
