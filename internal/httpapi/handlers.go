package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/cartstate/internal/catalog"
	"github.com/nikolayk812/cartstate/internal/checkout"
	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/shopspring/decimal"
)

type handler struct {
	store     CartStore
	catalog   catalog.Source
	shop      string
	threshold decimal.Decimal
	logg      *logger.Logger
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=256"`
	VariantID string `json:"variantId" validate:"max=256"`
}

type quantityRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

type switchVariantRequest struct {
	VariantID string `json:"variantId" validate:"required,max=256"`
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}

	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, productView{
			ID:       p.ID,
			Title:    p.Title,
			Image:    p.ImageURL,
			Variants: toVariantViews(p.Variants),
		})
	}
	writeSuccess(w, out)
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	product, err := h.catalog.Product(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(ctx, h.logg, w, newAPIError(http.StatusNotFound, codeNotFound, "product not found", err))
		return
	}
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	if !h.store.AddItem(ctx, product, req.VariantID) {
		writeError(ctx, h.logg, w, newAPIError(http.StatusUnprocessableEntity, codeNotAdded, "product has no variants to add", nil))
		return
	}

	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) removeItem(w http.ResponseWriter, r *http.Request) {
	variantID, err := variantParam(r)
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}

	h.store.RemoveItem(r.Context(), variantID)
	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	variantID, err := variantParam(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	var req quantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	h.store.UpdateQuantity(ctx, variantID, req.Delta)
	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) switchVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	variantID, err := variantParam(r)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	var req switchVariantRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}

	h.store.SwitchVariant(ctx, variantID, req.VariantID)
	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.store.Clear(r.Context())
	writeSuccess(w, h.view(h.store.Cart()))
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	cart := h.store.Cart()

	link, err := checkout.BuildURL(h.shop, cart.Items)
	if errors.Is(err, checkout.ErrEmptyCart) {
		writeError(r.Context(), h.logg, w, newAPIError(http.StatusConflict, codeEmptyCart, "cart is empty", err))
		return
	}
	if err != nil {
		writeError(r.Context(), h.logg, w, err)
		return
	}

	writeSuccess(w, checkoutView{
		URL:  link,
		Cart: h.view(cart),
	})
}

// variantParam returns the decoded variant id. gid-style ids are sent
// %2F-encoded; chi then routes on the raw path and the segment is still escaped.
func variantParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "variantID")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(id)
		if err != nil {
			return "", newAPIError(http.StatusBadRequest, codeValidation, "invalid variant id", err)
		}
		id = unescaped
	}
	if id == "" {
		return "", newAPIError(http.StatusBadRequest, codeValidation, "invalid variant id", nil)
	}
	return id, nil
}

type moneyView struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
	Formatted    string `json:"formatted"`
}

type variantView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Price            moneyView `json:"price"`
	AvailableForSale bool      `json:"availableForSale"`
}

type itemView struct {
	VariantID    string        `json:"id"`
	ProductID    string        `json:"productId"`
	Title        string        `json:"title"`
	VariantTitle string        `json:"variantTitle"`
	Price        moneyView     `json:"price"`
	LineTotal    moneyView     `json:"lineTotal"`
	Image        string        `json:"image"`
	Quantity     int           `json:"quantity"`
	Variants     []variantView `json:"variants"`
}

type shippingView struct {
	Threshold string    `json:"threshold"`
	Remaining moneyView `json:"remaining"`
	Percent   string    `json:"percent"`
	Unlocked  bool      `json:"unlocked"`
}

type cartView struct {
	Items         []itemView   `json:"items"`
	TotalQuantity int          `json:"totalQuantity"`
	Subtotal      moneyView    `json:"subtotal"`
	Shipping      shippingView `json:"shipping"`
}

type productView struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Image    string        `json:"image"`
	Variants []variantView `json:"variants"`
}

type checkoutView struct {
	URL  string   `json:"url"`
	Cart cartView `json:"cart"`
}

func (h *handler) view(cart domain.Cart) cartView {
	subtotal := cart.Subtotal()
	progress := checkout.ShippingProgress(subtotal.Amount, h.threshold)

	items := make([]itemView, 0, cart.Len())
	for _, item := range cart.Items {
		items = append(items, itemView{
			VariantID:    item.VariantID,
			ProductID:    item.ProductID,
			Title:        item.Title,
			VariantTitle: item.VariantLabel,
			Price:        toMoneyView(item.UnitPrice),
			LineTotal:    toMoneyView(item.UnitPrice.Times(item.Quantity)),
			Image:        item.ImageURL,
			Quantity:     item.Quantity,
			Variants:     toVariantViews(item.AvailableVariants),
		})
	}

	return cartView{
		Items:         items,
		TotalQuantity: cart.TotalQuantity(),
		Subtotal:      toMoneyView(subtotal),
		Shipping: shippingView{
			Threshold: h.threshold.String(),
			Remaining: toMoneyView(domain.Money{Amount: progress.Remaining, Currency: subtotal.Currency}),
			Percent:   progress.Percent.String(),
			Unlocked:  progress.Unlocked,
		},
	}
}

func toVariantViews(variants []domain.Variant) []variantView {
	out := make([]variantView, 0, len(variants))
	for _, v := range variants {
		out = append(out, variantView{
			ID:               v.ID,
			Title:            v.Label,
			Price:            toMoneyView(v.Price),
			AvailableForSale: v.Available,
		})
	}
	return out
}

func toMoneyView(m domain.Money) moneyView {
	code := ""
	if m.Currency.String() != "XXX" {
		code = m.Currency.String()
	}
	return moneyView{
		Amount:       m.Amount.StringFixed(2),
		CurrencyCode: code,
		Formatted:    checkout.FormatPrice(m),
	}
}
