package sync

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes of the upstream documents stored in RawRecord.Payload.
// Amounts arrive as strings or numbers; json.Number absorbs both.

type orderDocument struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	Currency     string              `json:"currency"`
	Total        json.Number         `json:"total"`
	DiscountTotal json.Number        `json:"discount_total"`
	ShippingTotal json.Number        `json:"shipping_total"`
	Customer     struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
	Tags      string              `json:"tags"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
	LineItems []orderLineDocument `json:"line_items"`
}

type orderLineDocument struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	SKU       string      `json:"sku"`
	Title     string      `json:"title"`
	Quantity  int64       `json:"quantity"`
	Price     json.Number `json:"price"`
	Total     json.Number `json:"total"`
}

type productDocument struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Status    string                  `json:"status"`
	Vendor    string                  `json:"vendor"`
	Tags      string                  `json:"tags"`
	Price     json.Number             `json:"price"`
	UpdatedAt string                  `json:"updated_at"`
	Variants  []productVariantDocument `json:"variants"`
}

type productVariantDocument struct {
	ID           string      `json:"id"`
	SKU          string      `json:"sku"`
	Title        string      `json:"title"`
	Price        json.Number `json:"price"`
	InventoryQty int64       `json:"inventory_quantity"`
}

// TransformOrder maps one raw order record into a normalized order plus its
// line items. It is a pure mapping: no I/O, and two calls over the same
// payload produce identical output except for the SyncedAt bookkeeping
// field.
func TransformOrder(raw *RawRecord) (*NormalizedOrder, error) {
	var doc orderDocument
	if err := json.Unmarshal(raw.Payload, &doc); err != nil {
		return nil, &ValidationError{ExternalID: raw.ExternalID, Field: "payload", Reason: "is not a valid order document"}
	}
	if doc.ID == "" {
		return nil, &ValidationError{ExternalID: raw.ExternalID, Field: "id", Reason: "is required"}
	}
	total, err := parseMoney(doc.Total)
	if err != nil {
		return nil, &ValidationError{ExternalID: doc.ID, Field: "total", Reason: "must be numeric"}
	}

	order := &NormalizedOrder{
		TenantID:        raw.TenantID,
		SourceSystem:    raw.SourceSystem,
		ExternalID:      doc.ID,
		RawRecordID:     raw.ID,
		Status:          strings.ToUpper(doc.Status),
		Currency:        defaultCurrency(doc.Currency),
		TotalAmount:     total,
		DiscountAmount:  parseMoneyOrZero(doc.DiscountTotal),
		FreightAmount:   parseMoneyOrZero(doc.ShippingTotal),
		CustomerName:    doc.Customer.Name,
		CustomerEmail:   doc.Customer.Email,
		Tags:            splitTags(doc.Tags),
		OrderedAt:       parseTimeUTC(doc.CreatedAt),
		UpstreamUpdated: parseTimeUTC(doc.UpdatedAt),
		OriginalPayload: raw.Payload,
		SyncedAt:        time.Now().UTC(),
	}

	for _, li := range doc.LineItems {
		if li.ID == "" {
			return nil, &ValidationError{ExternalID: doc.ID, Field: "line_items.id", Reason: "is required"}
		}
		price, err := parseMoney(li.Price)
		if err != nil {
			return nil, &ValidationError{ExternalID: doc.ID, Field: "line_items.price", Reason: "must be numeric"}
		}
		order.Lines = append(order.Lines, OrderLine{
			TenantID:        raw.TenantID,
			OrderExternalID: doc.ID,
			ExternalID:      li.ID,
			ProductExternal: li.ProductID,
			SKU:             li.SKU,
			Title:           li.Title,
			Quantity:        li.Quantity,
			UnitPrice:       price,
			LineTotal:       parseMoneyOrZero(li.Total),
		})
	}
	return order, nil
}

// TransformProduct maps one raw product record into a normalized product
// plus its variants, under the same purity contract as TransformOrder.
func TransformProduct(raw *RawRecord) (*NormalizedProduct, error) {
	var doc productDocument
	if err := json.Unmarshal(raw.Payload, &doc); err != nil {
		return nil, &ValidationError{ExternalID: raw.ExternalID, Field: "payload", Reason: "is not a valid product document"}
	}
	if doc.ID == "" {
		return nil, &ValidationError{ExternalID: raw.ExternalID, Field: "id", Reason: "is required"}
	}
	if doc.Title == "" {
		return nil, &ValidationError{ExternalID: doc.ID, Field: "title", Reason: "is required"}
	}

	product := &NormalizedProduct{
		TenantID:        raw.TenantID,
		SourceSystem:    raw.SourceSystem,
		ExternalID:      doc.ID,
		RawRecordID:     raw.ID,
		Title:           doc.Title,
		Status:          strings.ToUpper(doc.Status),
		Vendor:          doc.Vendor,
		Tags:            splitTags(doc.Tags),
		Price:           parseMoneyOrZero(doc.Price),
		UpstreamUpdated: parseTimeUTC(doc.UpdatedAt),
		OriginalPayload: raw.Payload,
		SyncedAt:        time.Now().UTC(),
	}

	for _, v := range doc.Variants {
		if v.ID == "" {
			return nil, &ValidationError{ExternalID: doc.ID, Field: "variants.id", Reason: "is required"}
		}
		product.Variants = append(product.Variants, ProductVariant{
			TenantID:          raw.TenantID,
			ProductExternalID: doc.ID,
			ExternalID:        v.ID,
			SKU:               v.SKU,
			Title:             v.Title,
			Price:             parseMoneyOrZero(v.Price),
			InventoryQty:      v.InventoryQty,
		})
	}
	return product, nil
}

// parseMoney normalizes a currency amount to two decimal places, rounding
// half up to match upstream currency conventions.
func parseMoney(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Reason: "is required"}
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Round(2), nil
}

func parseMoneyOrZero(n json.Number) decimal.Decimal {
	d, err := parseMoney(n)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseTimeUTC accepts RFC3339 timestamps and normalizes them to UTC. A
// missing or malformed timestamp yields the zero time rather than an error:
// upstream includes it inconsistently.
func parseTimeUTC(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// splitTags converts upstream free-text tags into a sorted deduplicated set.
// Sorting keeps the transform deterministic across runs.
func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func defaultCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return strings.ToUpper(c)
}
