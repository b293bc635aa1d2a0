// Package shoptools provides the shopping assistant tools.
//
// The tools read and mutate the shopping session of the chat in the context:
// the cart and the search history. Calls for the same session are serialized.
package shoptools

import (
	"context"
	"path"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/store"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent/tools", "shoptools")

// Tool names
const (
	SearchProductToolName     = "search_product"
	AddToCartToolName         = "add_to_cart"
	ViewCartToolName          = "view_cart"
	ApplyDiscountToolName     = "apply_discount"
	RemoveFromCartToolName    = "remove_from_cart"
	ClearCartToolName         = "clear_cart"
	CalculateTotalToolName    = "calculate_total"
	RecommendProductsToolName = "recommend_products"
	SearchHistoryToolName     = "search_history"
)

// number of suggestions for a product that is not found
const suggestionsCount = 3

// number of searches returned by search_history
const recentSearchesCount = 5

// number of recommended products
const recommendCount = 3

// Shop provides the shop tools over the catalog and the session store
type Shop struct {
	catalog  *shop.Catalog
	pricing  *shop.Pricing
	sessions store.SessionStore
	locks    keyedMutex
}

// New returns the shop,
// nil catalog and pricing use the defaults.
func New(catalog *shop.Catalog, pricing *shop.Pricing, sessions store.SessionStore) *Shop {
	if catalog == nil {
		catalog = shop.DefaultCatalog()
	}
	if pricing == nil {
		pricing = shop.DefaultPricing()
	}
	return &Shop{
		catalog:  catalog,
		pricing:  pricing,
		sessions: sessions,
		locks:    keyedMutex{locks: make(map[string]*lockEntry)},
	}
}

// Catalog returns the product catalog
func (s *Shop) Catalog() *shop.Catalog {
	return s.catalog
}

// Pricing returns the pricing rules
func (s *Shop) Pricing() *shop.Pricing {
	return s.pricing
}

// Tools returns the shop tools
func (s *Shop) Tools() []tools.ITool {
	return []tools.ITool{
		s.SearchProduct(),
		s.AddToCart(),
		s.ViewCart(),
		s.ApplyDiscount(),
		s.RemoveFromCart(),
		s.ClearCart(),
		s.CalculateTotal(),
		s.RecommendProducts(),
		s.SearchHistory(),
	}
}

// CartView returns the totals of the session cart,
// it is used by the outer surfaces to show the cart without the model.
func (s *Shop) CartView(ctx context.Context) (*CalculateTotalResponse, error) {
	return withSession(ctx, s, func(sess *shop.Session) (*CalculateTotalResponse, bool) {
		return s.calculateTotal(&sess.Cart), false
	})
}

// withSession runs fn with the session of the chat in ctx, under the session lock.
// The session is saved when fn reports a change.
func withSession[O any](ctx context.Context, s *Shop, fn func(sess *shop.Session) (*O, bool)) (*O, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(path.Join(tenantID, chatID))
	defer unlock()

	sess, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load session")
	}

	res, changed := fn(sess)
	if changed {
		if err = s.sessions.Save(ctx, sess); err != nil {
			return nil, errors.WithMessage(err, "failed to save session")
		}
	}
	return res, nil
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes the callers of the same key,
// the entries are released when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// Lock locks the key and returns the unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e := k.locks[key]
	if e == nil {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
