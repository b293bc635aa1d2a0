package shoptools

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/xlog"
)

// AddToCartRequest is the input of add_to_cart
type AddToCartRequest struct {
	Product  string `json:"product" yaml:"product" jsonschema:"description=Name of the product to add. The match is flexible."`
	Quantity *int   `json:"quantity,omitempty" yaml:"quantity,omitempty" jsonschema:"description=Number of units to add (default 1)."`
}

// CartLine is a cart line with formatted prices
type CartLine struct {
	Name      string `json:"name" yaml:"name"`
	Quantity  int    `json:"quantity" yaml:"quantity"`
	UnitPrice string `json:"unit_price" yaml:"unit_price"`
	Subtotal  string `json:"subtotal" yaml:"subtotal"`
}

// CartSummary is the short cart state returned after a change
type CartSummary struct {
	TotalItems   int    `json:"total_items" yaml:"total_items"`
	Subtotal     string `json:"subtotal" yaml:"subtotal"`
	FreeShipping bool   `json:"free_shipping" yaml:"free_shipping"`
}

// StockInfo explains an insufficient stock error
type StockInfo struct {
	Stock     int `json:"stock" yaml:"stock"`
	InCart    int `json:"in_cart" yaml:"in_cart"`
	Available int `json:"available" yaml:"available"`
}

// AddToCartResponse is the output of add_to_cart
type AddToCartResponse struct {
	tools.Result
	Added *CartLine    `json:"added,omitempty" yaml:"added,omitempty"`
	Cart  *CartSummary `json:"cart,omitempty" yaml:"cart,omitempty"`
	Stock *StockInfo   `json:"stock,omitempty" yaml:"stock,omitempty"`
}

// ViewCartRequest is the input of view_cart
type ViewCartRequest struct{}

// Calculations is the cart breakdown of view_cart
type Calculations struct {
	Subtotal     string `json:"subtotal" yaml:"subtotal"`
	Discount     string `json:"discount,omitempty" yaml:"discount,omitempty"`
	DiscountCode string `json:"discount_code,omitempty" yaml:"discount_code,omitempty"`
	Tax          string `json:"tax" yaml:"tax"`
	Shipping     string `json:"shipping" yaml:"shipping"`
	FreeShipping bool   `json:"free_shipping" yaml:"free_shipping"`
	Total        string `json:"total" yaml:"total"`
}

// ViewCartResponse is the output of view_cart
type ViewCartResponse struct {
	tools.Result
	Suggestion      string        `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Items           []CartLine    `json:"items,omitempty" yaml:"items,omitempty"`
	TotalProducts   int           `json:"total_products,omitempty" yaml:"total_products,omitempty"`
	TotalUnits      int           `json:"total_units,omitempty" yaml:"total_units,omitempty"`
	Calculations    *Calculations `json:"calculations,omitempty" yaml:"calculations,omitempty"`
	SavingsMessage  string        `json:"savings_message,omitempty" yaml:"savings_message,omitempty"`
	ShippingMessage string        `json:"shipping_message,omitempty" yaml:"shipping_message,omitempty"`
}

// ApplyDiscountRequest is the input of apply_discount
type ApplyDiscountRequest struct {
	Code string `json:"code" yaml:"code" jsonschema:"description=The discount code to apply (case-insensitive)."`
}

// DiscountInfo describes an applied discount
type DiscountInfo struct {
	Percentage       string `json:"percentage" yaml:"percentage"`
	Amount           string `json:"amount" yaml:"amount"`
	OriginalSubtotal string `json:"original_subtotal" yaml:"original_subtotal"`
	Total            string `json:"total" yaml:"total"`
}

// ApplyDiscountResponse is the output of apply_discount
type ApplyDiscountResponse struct {
	tools.Result
	Discount       *DiscountInfo `json:"discount,omitempty" yaml:"discount,omitempty"`
	AvailableCodes []string      `json:"available_codes,omitempty" yaml:"available_codes,omitempty"`
}

// RemoveFromCartRequest is the input of remove_from_cart
type RemoveFromCartRequest struct {
	Product  string `json:"product" yaml:"product" jsonschema:"description=Name of the product to remove. The match is flexible."`
	Quantity *int   `json:"quantity,omitempty" yaml:"quantity,omitempty" jsonschema:"description=Number of units to remove. Leave empty to remove the whole line."`
}

// RemoveFromCartResponse is the output of remove_from_cart
type RemoveFromCartResponse struct {
	tools.Result
	RemovedProduct    string `json:"removed_product,omitempty" yaml:"removed_product,omitempty"`
	RemovedQuantity   int    `json:"removed_quantity,omitempty" yaml:"removed_quantity,omitempty"`
	RemainingQuantity *int   `json:"remaining_quantity,omitempty" yaml:"remaining_quantity,omitempty"`
}

// ClearCartRequest is the input of clear_cart
type ClearCartRequest struct{}

// ClearCartResponse is the output of clear_cart
type ClearCartResponse struct {
	tools.Result
	RemovedProducts int `json:"removed_products" yaml:"removed_products"`
	RemovedUnits    int `json:"removed_units" yaml:"removed_units"`
}

// CalculateTotalRequest is the input of calculate_total
type CalculateTotalRequest struct{}

// DiscountLine is the discount of the total breakdown
type DiscountLine struct {
	Code   string `json:"code" yaml:"code"`
	Amount string `json:"amount" yaml:"amount"`
}

// TaxLine is the tax of the total breakdown
type TaxLine struct {
	Rate   string `json:"rate" yaml:"rate"`
	Amount string `json:"amount" yaml:"amount"`
}

// ShippingLine is the shipping of the total breakdown
type ShippingLine struct {
	Cost          string `json:"cost" yaml:"cost"`
	Free          bool   `json:"free" yaml:"free"`
	FreeThreshold string `json:"free_threshold" yaml:"free_threshold"`
}

// Savings lists the discount and the waived shipping
type Savings struct {
	Items []string `json:"items" yaml:"items"`
	Total string   `json:"total" yaml:"total"`
}

// CalculateTotalResponse is the output of calculate_total
type CalculateTotalResponse struct {
	tools.Result
	Products []CartLine    `json:"products,omitempty" yaml:"products,omitempty"`
	Subtotal string        `json:"subtotal,omitempty" yaml:"subtotal,omitempty"`
	Discount *DiscountLine `json:"discount,omitempty" yaml:"discount,omitempty"`
	Tax      *TaxLine      `json:"tax,omitempty" yaml:"tax,omitempty"`
	Shipping *ShippingLine `json:"shipping,omitempty" yaml:"shipping,omitempty"`
	Total    string        `json:"total" yaml:"total"`
	Savings  *Savings      `json:"savings,omitempty" yaml:"savings,omitempty"`
}

func cartLines(cart *shop.Cart) []CartLine {
	lines := make([]CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, CartLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: shop.MoneyFloat(item.UnitPrice),
			Subtotal:  shop.Money(item.Subtotal()),
		})
	}
	return lines
}

func (s *Shop) cartSummary(cart *shop.Cart) *CartSummary {
	totals := cart.Totals(s.pricing)
	return &CartSummary{
		TotalItems:   totals.Units,
		Subtotal:     shop.Money(totals.Subtotal),
		FreeShipping: totals.FreeShipping,
	}
}

// AddToCart returns the add_to_cart tool
func (s *Shop) AddToCart() *tools.Function[AddToCartRequest, AddToCartResponse] {
	return tools.MustFunction(AddToCartToolName,
		"Adds units of a product to the session cart. Adding a product that is already in the cart increases its quantity. "+
			"The quantity in the cart can not exceed the stock. Mutates the session cart.",
		s.addToCart)
}

func (s *Shop) addToCart(ctx context.Context, req *AddToCartRequest) (*AddToCartResponse, error) {
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	logger.ContextKV(ctx, xlog.DEBUG, "tool", AddToCartToolName, "product", req.Product, "quantity", qty)

	if qty <= 0 {
		return &AddToCartResponse{
			Result: tools.Errorf("quantity must be a whole number greater than zero"),
		}, nil
	}

	p, ok := s.catalog.Find(req.Product)
	if !ok {
		return &AddToCartResponse{
			Result: tools.Errorf("product %q was not found, use %s to see the options", req.Product, SearchProductToolName),
		}, nil
	}

	return withSession(ctx, s, func(sess *shop.Session) (*AddToCartResponse, bool) {
		inCart := sess.Cart.Quantity(p.ID)
		if _, err := sess.Cart.Add(p, qty); err != nil {
			res := &AddToCartResponse{
				Result: tools.Errorf("%s", err.Error()),
			}
			if errors.Is(err, shop.ErrInsufficientStock) {
				res.Result = tools.Errorf("insufficient stock, %s", err.Error())
				res.Stock = &StockInfo{
					Stock:     p.Stock,
					InCart:    inCart,
					Available: max(p.Stock-inCart, 0),
				}
			}
			return res, false
		}

		metricskey.StatsShopCartAdds.IncrCounter(float64(qty), p.ID)
		added := shop.CartItem{UnitPrice: p.Price, Quantity: qty}
		return &AddToCartResponse{
			Result: tools.Successf("added %d x %q to the cart", qty, p.Name),
			Added: &CartLine{
				Name:      p.Name,
				Quantity:  qty,
				UnitPrice: shop.MoneyFloat(p.Price),
				Subtotal:  shop.Money(added.Subtotal()),
			},
			Cart: s.cartSummary(&sess.Cart),
		}, true
	})
}

// ViewCart returns the view_cart tool
func (s *Shop) ViewCart() *tools.Function[ViewCartRequest, ViewCartResponse] {
	return tools.MustFunction(ViewCartToolName,
		"Shows the session cart with the line subtotals, the discount, the tax, the shipping and the total. Reads the session cart.",
		s.viewCart).WithReadOnly()
}

func (s *Shop) viewCart(ctx context.Context, _ *ViewCartRequest) (*ViewCartResponse, error) {
	return withSession(ctx, s, func(sess *shop.Session) (*ViewCartResponse, bool) {
		cart := &sess.Cart
		if cart.IsEmpty() {
			return &ViewCartResponse{
				Result:     tools.Empty("the cart is empty"),
				Suggestion: "You can search for available products or ask for recommendations.",
			}, false
		}

		totals := cart.Totals(s.pricing)
		res := &ViewCartResponse{
			Result:        tools.Successf("the cart has %d products", totals.Lines),
			Items:         cartLines(cart),
			TotalProducts: totals.Lines,
			TotalUnits:    totals.Units,
			Calculations: &Calculations{
				Subtotal:     shop.Money(totals.Subtotal),
				DiscountCode: totals.DiscountCode,
				Tax:          shop.Money(totals.Tax),
				Shipping:     shop.Money(totals.Shipping),
				FreeShipping: totals.FreeShipping,
				Total:        shop.Money(totals.Total),
			},
		}
		if totals.Discount.IsPositive() {
			res.Calculations.Discount = shop.Money(totals.Discount)
			res.SavingsMessage = "You are saving " + shop.Money(totals.Discount) + "!"
		}
		if totals.FreeShipping {
			res.ShippingMessage = "Free shipping included!"
		}
		return res, false
	})
}

// ApplyDiscount returns the apply_discount tool
func (s *Shop) ApplyDiscount() *tools.Function[ApplyDiscountRequest, ApplyDiscountResponse] {
	return tools.MustFunction(ApplyDiscountToolName,
		"Applies a discount code to the session cart, replacing any previous code. The cart must not be empty. Mutates the session cart.",
		s.applyDiscount)
}

func (s *Shop) applyDiscount(ctx context.Context, req *ApplyDiscountRequest) (*ApplyDiscountResponse, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "tool", ApplyDiscountToolName, "code", req.Code)

	return withSession(ctx, s, func(sess *shop.Session) (*ApplyDiscountResponse, bool) {
		code, err := sess.Cart.ApplyDiscount(s.pricing, req.Code)
		if err != nil {
			if errors.Is(err, shop.ErrEmptyCart) {
				return &ApplyDiscountResponse{
					Result: tools.Errorf("the cart is empty, add products before applying a discount"),
				}, false
			}
			return &ApplyDiscountResponse{
				Result:         tools.Errorf("code %q is not valid", req.Code),
				AvailableCodes: s.pricing.Codes(),
			}, false
		}

		metricskey.StatsShopDiscountsApplied.IncrCounter(1, code)
		totals := sess.Cart.Totals(s.pricing)
		pct := shop.Percent(totals.DiscountPercent)
		return &ApplyDiscountResponse{
			Result: tools.Successf("code %s applied: %s off", code, pct),
			Discount: &DiscountInfo{
				Percentage:       pct,
				Amount:           shop.Money(totals.Discount),
				OriginalSubtotal: shop.Money(totals.Subtotal),
				Total:            shop.Money(totals.Total),
			},
		}, true
	})
}

// RemoveFromCart returns the remove_from_cart tool
func (s *Shop) RemoveFromCart() *tools.Function[RemoveFromCartRequest, RemoveFromCartResponse] {
	return tools.MustFunction(RemoveFromCartToolName,
		"Removes a product from the session cart. Without quantity, or with a quantity not less than the quantity in the cart, the whole line is removed; "+
			"otherwise the quantity is decremented. Mutates the session cart.",
		s.removeFromCart)
}

func (s *Shop) removeFromCart(ctx context.Context, req *RemoveFromCartRequest) (*RemoveFromCartResponse, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "tool", RemoveFromCartToolName, "product", req.Product)

	p, ok := s.catalog.Find(req.Product)
	if !ok {
		return &RemoveFromCartResponse{
			Result: tools.Errorf("product %q was not found in the cart", req.Product),
		}, nil
	}

	return withSession(ctx, s, func(sess *shop.Session) (*RemoveFromCartResponse, bool) {
		removed, remaining, err := sess.Cart.Remove(p.ID, req.Quantity)
		if err != nil {
			if errors.Is(err, shop.ErrNotInCart) {
				return &RemoveFromCartResponse{
					Result: tools.Errorf("%q is not in the cart", p.Name),
				}, false
			}
			return &RemoveFromCartResponse{
				Result: tools.Errorf("quantity must be greater than zero"),
			}, false
		}

		if remaining == 0 {
			return &RemoveFromCartResponse{
				Result:          tools.Successf("removed %q from the cart", p.Name),
				RemovedProduct:  p.Name,
				RemovedQuantity: removed,
			}, true
		}
		return &RemoveFromCartResponse{
			Result:            tools.Successf("removed %d units of %q", removed, p.Name),
			RemovedProduct:    p.Name,
			RemovedQuantity:   removed,
			RemainingQuantity: &remaining,
		}, true
	})
}

// ClearCart returns the clear_cart tool
func (s *Shop) ClearCart() *tools.Function[ClearCartRequest, ClearCartResponse] {
	return tools.MustFunction(ClearCartToolName,
		"Removes all products and the discount code from the session cart. Mutates the session cart.",
		s.clearCart)
}

func (s *Shop) clearCart(ctx context.Context, _ *ClearCartRequest) (*ClearCartResponse, error) {
	return withSession(ctx, s, func(sess *shop.Session) (*ClearCartResponse, bool) {
		lines, units := sess.Cart.Clear()
		return &ClearCartResponse{
			Result:          tools.Success("the cart was cleared"),
			RemovedProducts: lines,
			RemovedUnits:    units,
		}, true
	})
}

// CalculateTotal returns the calculate_total tool
func (s *Shop) CalculateTotal() *tools.Function[CalculateTotalRequest, CalculateTotalResponse] {
	return tools.MustFunction(CalculateTotalToolName,
		"Calculates the detailed total of the session cart: subtotal, discount, tax, shipping, total and savings. Reads the session cart.",
		s.calculateTotalTool).WithReadOnly()
}

func (s *Shop) calculateTotalTool(ctx context.Context, _ *CalculateTotalRequest) (*CalculateTotalResponse, error) {
	return withSession(ctx, s, func(sess *shop.Session) (*CalculateTotalResponse, bool) {
		return s.calculateTotal(&sess.Cart), false
	})
}

func (s *Shop) calculateTotal(cart *shop.Cart) *CalculateTotalResponse {
	if cart.IsEmpty() {
		return &CalculateTotalResponse{
			Result: tools.Empty("the cart is empty"),
			Total:  shop.MoneyFloat(0),
		}
	}

	totals := cart.Totals(s.pricing)
	res := &CalculateTotalResponse{
		Result:   tools.Successf("total to pay: %s", shop.Money(totals.Total)),
		Products: cartLines(cart),
		Subtotal: shop.Money(totals.Subtotal),
		Tax: &TaxLine{
			Rate:   shop.Percent(totals.TaxRate * 100),
			Amount: shop.Money(totals.Tax),
		},
		Shipping: &ShippingLine{
			Cost:          shop.Money(totals.Shipping),
			Free:          totals.FreeShipping,
			FreeThreshold: shop.MoneyFloat(s.pricing.FreeShippingThreshold),
		},
		Total: shop.Money(totals.Total),
	}

	var savings []string
	if totals.Discount.IsPositive() {
		res.Discount = &DiscountLine{
			Code:   totals.DiscountCode,
			Amount: shop.Money(totals.Discount),
		}
		savings = append(savings, "Discount: "+shop.Money(totals.Discount))
	}
	if totals.FreeShipping {
		savings = append(savings, "Free shipping: "+shop.MoneyFloat(s.pricing.ShippingCost))
	}
	if len(savings) > 0 {
		res.Savings = &Savings{
			Items: savings,
			Total: shop.Money(totals.Savings(s.pricing)),
		}
	}
	return res
}
