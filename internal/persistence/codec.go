package persistence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nikolayk812/cartstate/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// The persisted shape is a JSON array of line item records, readable by the
// storefront that wrote the same key before.
type lineItemRecord struct {
	ID           string          `json:"id" validate:"required"`
	ProductID    string          `json:"productId"`
	Title        string          `json:"title"`
	VariantTitle string          `json:"variantTitle"`
	Price        json.Number     `json:"price" validate:"required"`
	Currency     string          `json:"currency" validate:"required"`
	Image        string          `json:"image"`
	Quantity     int             `json:"quantity" validate:"min=1"`
	Variants     []variantRecord `json:"variants,omitempty" validate:"dive"`
}

type variantRecord struct {
	ID               string      `json:"id" validate:"required"`
	Title            string      `json:"title"`
	Price            priceRecord `json:"price"`
	AvailableForSale bool        `json:"availableForSale"`
}

type priceRecord struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Encode serializes the full cart. An empty cart encodes as "[]".
func Encode(cart domain.Cart) ([]byte, error) {
	records := make([]lineItemRecord, 0, len(cart.Items))
	for _, item := range cart.Items {
		records = append(records, mapDomainToRecord(item))
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return data, nil
}

// Decode parses and validates a persisted cart. Any structural problem,
// including duplicate variant ids, is reported as an error.
func Decode(data []byte) (domain.Cart, error) {
	var records []lineItemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return domain.Cart{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	for i := range records {
		if err := validate.Struct(records[i]); err != nil {
			return domain.Cart{}, fmt.Errorf("validate.Struct[%d]: %w", i, err)
		}
	}

	items, err := mapRecordsToDomain(records)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("mapRecordsToDomain: %w", err)
	}

	return domain.Cart{Items: items}, nil
}

func mapDomainToRecord(item domain.LineItem) lineItemRecord {
	record := lineItemRecord{
		ID:           item.VariantID,
		ProductID:    item.ProductID,
		Title:        item.Title,
		VariantTitle: item.VariantLabel,
		Price:        json.Number(item.UnitPrice.Amount.String()),
		Currency:     item.UnitPrice.Currency.String(),
		Image:        item.ImageURL,
		Quantity:     item.Quantity,
	}

	for _, v := range item.AvailableVariants {
		record.Variants = append(record.Variants, variantRecord{
			ID:    v.ID,
			Title: v.Label,
			Price: priceRecord{
				Amount:       v.Price.Amount,
				CurrencyCode: v.Price.Currency.String(),
			},
			AvailableForSale: v.Available,
		})
	}

	return record
}

func mapRecordToDomain(record lineItemRecord) (domain.LineItem, error) {
	amount, err := decimal.NewFromString(record.Price.String())
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("price[%s] is not valid: %w", record.Price, err)
	}

	parsedCurrency, err := currency.ParseISO(record.Currency)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("currency[%s] is not valid: %w", record.Currency, err)
	}

	item := domain.LineItem{
		VariantID:    record.ID,
		ProductID:    record.ProductID,
		Title:        record.Title,
		VariantLabel: record.VariantTitle,
		UnitPrice:    domain.Money{Amount: amount, Currency: parsedCurrency},
		ImageURL:     record.Image,
		Quantity:     record.Quantity,
	}

	for _, v := range record.Variants {
		variantCurrency, err := currency.ParseISO(v.Price.CurrencyCode)
		if err != nil {
			return domain.LineItem{}, fmt.Errorf("variant[%s] currency[%s] is not valid: %w", v.ID, v.Price.CurrencyCode, err)
		}

		item.AvailableVariants = append(item.AvailableVariants, domain.Variant{
			ID:        v.ID,
			Label:     v.Title,
			Price:     domain.Money{Amount: v.Price.Amount, Currency: variantCurrency},
			Available: v.AvailableForSale,
		})
	}

	return item, nil
}

func mapRecordsToDomain(records []lineItemRecord) ([]domain.LineItem, error) {
	var items []domain.LineItem
	seen := make(map[string]struct{}, len(records))

	for _, record := range records {
		if _, dup := seen[record.ID]; dup {
			return nil, fmt.Errorf("variant id[%s] is duplicated", record.ID)
		}
		seen[record.ID] = struct{}{}

		item, err := mapRecordToDomain(record)
		if err != nil {
			return nil, fmt.Errorf("mapRecordToDomain: %w", err)
		}

		items = append(items, item)
	}

	return items, nil
}
