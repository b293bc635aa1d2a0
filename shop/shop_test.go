package shop_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/shop"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := shop.DefaultCatalog()
	products := c.Products()
	require.Len(t, products, 5)

	var ids []string
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"LPG001", "TEC005", "MON003", "MOU002", "AUR004"}, ids)
	assert.Equal(t, []string{"Audio", "Computadoras", "Monitores", "Periféricos"}, c.Categories())

	p, ok := c.Get("MON003")
	require.True(t, ok)
	assert.Equal(t, "Monitor 4K HDR", p.Name)
	assert.Equal(t, 400.0, p.Price)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, 203, p.Reviews)
	assert.Len(t, p.Features, 4)
	assert.True(t, p.Available())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCatalog_Find(t *testing.T) {
	c := shop.DefaultCatalog()

	tcases := []struct {
		name string
		exp  string
	}{
		{"laptop gamer pro", "LPG001"},
		{"  Monitor 4K HDR ", "MON003"},
		{"laptop gamer", "LPG001"},
		{"monitr 4k hdr", "MON003"},
		{"teclado mecanico", "TEC005"},
		{"Auriculares 7.1", "AUR004"},
		{"xyz123", ""},
		{"", ""},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := c.Find(tc.name)
			if tc.exp == "" {
				assert.False(t, ok)
				assert.Nil(t, p)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.exp, p.ID)
		})
	}
}

func TestCatalog_FindTie(t *testing.T) {
	for _, products := range []string{
		`products: [{id: X, name: abcx}, {id: Y, name: abcy}]`,
		`products: [{id: Y, name: abcy}, {id: X, name: abcx}]`,
	} {
		c, err := shop.ParseCatalog([]byte(products))
		require.NoError(t, err)
		// both keys have the same ratio
		p, ok := c.Find("abcz")
		require.True(t, ok)
		assert.Equal(t, "Y", p.ID, products)
	}
}

func TestCatalog_Recommend(t *testing.T) {
	c := shop.DefaultCatalog()

	list, err := c.Recommend("", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "MON003", list[0].ID)
	assert.Equal(t, "LPG001", list[1].ID)
	assert.Equal(t, "MOU002", list[2].ID)

	list, err = c.Recommend("periféricos", 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "MOU002", list[0].ID)
	assert.Equal(t, "TEC005", list[1].ID)

	_, err = c.Recommend("Gaming", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shop.ErrUnknownCategory))
	assert.Contains(t, err.Error(), "Audio, Computadoras, Monitores, Periféricos")

	sugg := c.Suggestions(3)
	require.Len(t, sugg, 3)
	assert.Equal(t, "LPG001", sugg[0].ID)
	assert.Len(t, c.Suggestions(10), 5)
	assert.Empty(t, c.Suggestions(-1))
}

func TestParseCatalog(t *testing.T) {
	c, err := shop.ParseCatalog([]byte(`
products:
  - id: P1
    name: Desk Lamp
    price: 25.5
    stock: 3
    category: Home
`))
	require.NoError(t, err)
	p, ok := c.Find("desk lamp")
	require.True(t, ok)
	assert.Equal(t, "desk lamp", p.Key)

	tcases := []struct {
		yaml string
		exp  string
	}{
		{`products: []`, "catalog has no products"},
		{`products: [{name: x}]`, `catalog product "x": id and name are required`},
		{`products: [{id: A, name: x, price: -1}]`, "catalog product A: price and stock must not be negative"},
		{`products: [{id: A, name: x}, {id: B, name: X}]`, `catalog product B: duplicate key "x"`},
		{`products: [{id: A, name: x}, {id: A, name: y}]`, "catalog product A: duplicate id"},
	}
	for _, tc := range tcases {
		_, err := shop.ParseCatalog([]byte(tc.yaml))
		assert.EqualError(t, err, tc.exp)
	}

	_, err = shop.ParseCatalog([]byte(`products: {`))
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`products: [{id: A, name: Widget, price: 1, stock: 1}]`), 0o600))
	c, err = shop.LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Products(), 1)

	_, err = shop.LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,500.00", shop.MoneyFloat(1500))
	assert.Equal(t, "$0.00", shop.Money(decimal.Zero))
	assert.Equal(t, "$1,434.24", shop.Money(decimal.RequireFromString("1434.2400")))
	assert.Equal(t, "$96.41", shop.Money(decimal.RequireFromString("96.405")))
	assert.Equal(t, "-$5.00", shop.MoneyFloat(-5))
	assert.Equal(t, "8%", shop.Percent(8))
	assert.Equal(t, "12.5%", shop.Percent(12.5))

	p := shop.DefaultPricing()
	assert.Equal(t, []string{"SAVE20", "VIP30", "WELCOME10"}, p.Codes())
	assert.Equal(t, "SAVE20 (20%), VIP30 (30%), WELCOME10 (10%)", p.CodesText())
	pct, ok := p.DiscountPercent(" vip30 ")
	assert.True(t, ok)
	assert.Equal(t, 30.0, pct)

	// the defaults are copied
	p.DiscountCodes["FREE"] = 100
	assert.NotContains(t, shop.DefaultDiscountCodes, "FREE")
}

func TestCart(t *testing.T) {
	c := shop.DefaultCatalog()
	pricing := shop.DefaultPricing()
	laptop, _ := c.Get("LPG001")
	mouse, _ := c.Get("MOU002")
	monitor, _ := c.Get("MON003")

	var cart shop.Cart
	assert.True(t, cart.IsEmpty())

	_, err := cart.ApplyDiscount(pricing, "SAVE20")
	assert.True(t, errors.Is(err, shop.ErrEmptyCart))

	_, err = cart.Add(mouse, 0)
	assert.True(t, errors.Is(err, shop.ErrInvalidQuantity))
	_, err = cart.Add(mouse, -2)
	assert.True(t, errors.Is(err, shop.ErrInvalidQuantity))

	item, err := cart.Add(mouse, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mouse Gaming Pro", item.Name)

	totals := cart.Totals(pricing)
	assert.Equal(t, "$80.00", shop.Money(totals.Subtotal))
	assert.Equal(t, "$6.40", shop.Money(totals.Tax))
	assert.Equal(t, "$10.00", shop.Money(totals.Shipping))
	assert.False(t, totals.FreeShipping)
	assert.Equal(t, "$96.40", shop.Money(totals.Total))

	item, err = cart.Add(mouse, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.Len(t, cart.Items, 1)

	_, err = cart.Add(laptop, 1)
	require.NoError(t, err)

	_, err = cart.Add(monitor, 6)
	assert.True(t, errors.Is(err, shop.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "only 5 units")

	_, err = cart.ApplyDiscount(pricing, "BOGUS")
	assert.True(t, errors.Is(err, shop.ErrInvalidDiscountCode))
	code, err := cart.ApplyDiscount(pricing, " save20 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", code)

	totals = cart.Totals(pricing)
	assert.Equal(t, 2, totals.Lines)
	assert.Equal(t, 3, totals.Units)
	assert.Equal(t, "$1,660.00", shop.Money(totals.Subtotal))
	assert.Equal(t, "$332.00", shop.Money(totals.Discount))
	assert.Equal(t, "$106.24", shop.Money(totals.Tax))
	assert.True(t, totals.FreeShipping)
	assert.Equal(t, "$0.00", shop.Money(totals.Shipping))
	assert.Equal(t, "$1,434.24", shop.Money(totals.Total))
	assert.Equal(t, "$342.00", shop.Money(totals.Savings(pricing)))

	two := 2
	zero := 0
	_, _, err = cart.Remove("MOU002", &zero)
	assert.True(t, errors.Is(err, shop.ErrInvalidQuantity))
	_, _, err = cart.Remove("MON003", nil)
	assert.True(t, errors.Is(err, shop.ErrNotInCart))

	one := 1
	removed, remaining, err := cart.Remove("MOU002", &one)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, remaining)

	removed, remaining, err = cart.Remove("MOU002", &two)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, remaining)
	assert.Nil(t, cart.Item("MOU002"))

	lines, units := cart.Clear()
	assert.Equal(t, 1, lines)
	assert.Equal(t, 1, units)
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, cart.DiscountCode)
}

// repeated add-then-remove leaves the net set of items
func TestCart_AddRemoveNet(t *testing.T) {
	c := shop.DefaultCatalog()
	products := c.Products()
	faker := gofakeit.New(42)

	for round := 0; round < 20; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			var cart shop.Cart
			expected := map[string]int{}

			for step := 0; step < 30; step++ {
				p := products[faker.IntRange(0, len(products)-1)]
				qty := faker.IntRange(1, 3)
				if faker.Bool() {
					if _, err := cart.Add(p, qty); err == nil {
						expected[p.ID] += qty
					} else {
						assert.True(t, errors.Is(err, shop.ErrInsufficientStock))
						assert.Greater(t, expected[p.ID]+qty, p.Stock)
					}
					continue
				}

				var q *int
				if faker.Bool() {
					q = &qty
				}
				removed, _, err := cart.Remove(p.ID, q)
				if expected[p.ID] == 0 {
					assert.True(t, errors.Is(err, shop.ErrNotInCart))
					continue
				}
				require.NoError(t, err)
				expected[p.ID] -= removed
				if expected[p.ID] == 0 {
					delete(expected, p.ID)
				}
			}

			got := map[string]int{}
			for _, item := range cart.Items {
				got[item.ProductID] = item.Quantity
			}
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("cart mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSession(t *testing.T) {
	s := shop.NewSession("chat1")
	assert.Equal(t, "chat1", s.ChatID)
	assert.Nil(t, s.RecentSearches(5))

	s.RecordSearch("  ")
	assert.Empty(t, s.SearchHistory)

	for i := 0; i < shop.MaxSearchHistory+10; i++ {
		s.RecordSearch(fmt.Sprintf("q%d", i))
	}
	assert.Len(t, s.SearchHistory, shop.MaxSearchHistory)
	assert.Equal(t, shop.MaxSearchHistory+10, s.TotalSearches)
	assert.Equal(t, shop.MaxSearchHistory+10, s.SearchCount())
	assert.Equal(t, "q10", s.SearchHistory[0])
	assert.Equal(t, []string{"q55", "q56", "q57", "q58", "q59"}, s.RecentSearches(5))
	assert.Nil(t, s.RecentSearches(0))
	assert.Len(t, s.RecentSearches(100), shop.MaxSearchHistory)

	// sessions stored without the counter
	legacy := &shop.Session{SearchHistory: []string{"a", "b"}}
	assert.Equal(t, 2, legacy.SearchCount())
	legacy.RecordSearch("c")
	assert.Equal(t, 3, legacy.TotalSearches)

	before := s.UpdatedAt
	s.Touch()
	assert.False(t, s.UpdatedAt.Before(before))
}
