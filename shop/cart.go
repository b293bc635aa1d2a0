package shop

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for a quantity that is not positive
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock is returned when the cart would exceed the stock
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotInCart is returned when the product is not in the cart
	ErrNotInCart = errors.New("product is not in the cart")
	// ErrEmptyCart is returned when a discount is applied to an empty cart
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidDiscountCode is returned for an unknown discount code
	ErrInvalidDiscountCode = errors.New("invalid discount code")
)

// CartItem is a cart line
type CartItem struct {
	ProductID string  `json:"product_id" yaml:"product_id"`
	Name      string  `json:"name" yaml:"name"`
	UnitPrice float64 `json:"unit_price" yaml:"unit_price"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
}

// Subtotal returns unit price times quantity
func (i *CartItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.UnitPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the session shopping cart
type Cart struct {
	Items        []*CartItem `json:"items,omitempty" yaml:"items,omitempty"`
	DiscountCode string      `json:"discount_code,omitempty" yaml:"discount_code,omitempty"`
}

// IsEmpty returns true when the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the cart line of the product
func (c *Cart) Item(productID string) *CartItem {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item
		}
	}
	return nil
}

// Quantity returns the in-cart quantity of the product
func (c *Cart) Quantity(productID string) int {
	if item := c.Item(productID); item != nil {
		return item.Quantity
	}
	return 0
}

// Units returns the total quantity across all lines
func (c *Cart) Units() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Add adds qty units of the product, merging into an existing line.
// The in-cart quantity must not exceed the stock.
func (c *Cart) Add(p *Product, qty int) (*CartItem, error) {
	if qty <= 0 {
		return nil, errors.WithStack(ErrInvalidQuantity)
	}
	inCart := c.Quantity(p.ID)
	if inCart+qty > p.Stock {
		return nil, errors.Mark(errors.Newf("only %d units of %q are available", max(p.Stock-inCart, 0), p.Name), ErrInsufficientStock)
	}

	if item := c.Item(p.ID); item != nil {
		item.Quantity += qty
		return item, nil
	}
	item := &CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// Remove removes the product line when qty is nil or not less than the
// in-cart quantity, otherwise decrements it. It returns the removed units
// and the remaining units of the line.
func (c *Cart) Remove(productID string, qty *int) (removed int, remaining int, err error) {
	idx := -1
	for i, item := range c.Items {
		if item.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, 0, errors.WithStack(ErrNotInCart)
	}
	if qty != nil && *qty <= 0 {
		return 0, 0, errors.WithStack(ErrInvalidQuantity)
	}

	item := c.Items[idx]
	if qty == nil || *qty >= item.Quantity {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return item.Quantity, 0, nil
	}
	item.Quantity -= *qty
	return *qty, item.Quantity, nil
}

// ApplyDiscount sets the discount code of the cart
func (c *Cart) ApplyDiscount(pricing *Pricing, code string) (string, error) {
	if c.IsEmpty() {
		return "", errors.WithStack(ErrEmptyCart)
	}
	code = NormalizeCode(code)
	if _, ok := pricing.DiscountCodes[code]; !ok {
		return "", errors.WithStack(ErrInvalidDiscountCode)
	}
	c.DiscountCode = code
	return code, nil
}

// Clear removes all items and the discount,
// it returns the number of removed lines and units.
func (c *Cart) Clear() (lines int, units int) {
	lines, units = len(c.Items), c.Units()
	c.Items = nil
	c.DiscountCode = ""
	return lines, units
}

// Totals is the computed cart breakdown
type Totals struct {
	Lines           int
	Units           int
	Subtotal        decimal.Decimal
	DiscountCode    string
	DiscountPercent float64
	Discount        decimal.Decimal
	TaxRate         float64
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	FreeShipping    bool
	Total           decimal.Decimal
}

// Savings returns the discount plus the waived shipping
func (t *Totals) Savings(pricing *Pricing) decimal.Decimal {
	s := t.Discount
	if t.FreeShipping {
		s = s.Add(decimal.NewFromFloat(pricing.ShippingCost))
	}
	return s
}

// Totals computes the cart breakdown:
// tax applies to the discounted subtotal, shipping is waived from the threshold.
func (c *Cart) Totals(pricing *Pricing) Totals {
	t := Totals{
		Lines:    len(c.Items),
		Units:    c.Units(),
		Subtotal: decimal.Zero,
		TaxRate:  pricing.TaxRate,
	}
	for _, item := range c.Items {
		t.Subtotal = t.Subtotal.Add(item.Subtotal())
	}

	t.Discount = decimal.Zero
	if pct, ok := pricing.DiscountPercent(c.DiscountCode); ok && c.DiscountCode != "" {
		t.DiscountCode = c.DiscountCode
		t.DiscountPercent = pct
		t.Discount = t.Subtotal.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
	}

	t.Tax = t.Subtotal.Sub(t.Discount).Mul(decimal.NewFromFloat(pricing.TaxRate))

	t.FreeShipping = t.Subtotal.GreaterThanOrEqual(decimal.NewFromFloat(pricing.FreeShippingThreshold))
	t.Shipping = decimal.Zero
	if !t.FreeShipping {
		t.Shipping = decimal.NewFromFloat(pricing.ShippingCost)
	}

	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax).Add(t.Shipping)
	return t
}
