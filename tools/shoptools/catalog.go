package shoptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/shop"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/xlog"
)

// SearchProductRequest is the input of search_product
type SearchProductRequest struct {
	ProductName string `json:"product_name" yaml:"product_name" jsonschema:"description=Name of the product to search for. The match is flexible and does not need the exact name."`
}

// ProductDetails describes a catalog product
type ProductDetails struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Price          float64  `json:"price" yaml:"price"`
	PriceFormatted string   `json:"price_formatted" yaml:"price_formatted"`
	Stock          int      `json:"stock" yaml:"stock"`
	Features       []string `json:"features,omitempty" yaml:"features,omitempty"`
	Category       string   `json:"category" yaml:"category"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Rating         string   `json:"rating" yaml:"rating"`
	Available      bool     `json:"available" yaml:"available"`
}

// SearchProductResponse is the output of search_product
type SearchProductResponse struct {
	tools.Result
	Product         *ProductDetails `json:"product,omitempty" yaml:"product,omitempty"`
	Suggestions     []string        `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	SuggestionsText string          `json:"suggestions_text,omitempty" yaml:"suggestions_text,omitempty"`
}

// RecommendProductsRequest is the input of recommend_products
type RecommendProductsRequest struct {
	Category string `json:"category,omitempty" yaml:"category,omitempty" jsonschema:"description=Optional category to filter by. Leave empty to recommend across all categories."`
}

// Recommendation is a recommended product
type Recommendation struct {
	Name        string `json:"name" yaml:"name"`
	Price       string `json:"price" yaml:"price"`
	Rating      string `json:"rating" yaml:"rating"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Available   bool   `json:"available" yaml:"available"`
}

// RecommendProductsResponse is the output of recommend_products
type RecommendProductsResponse struct {
	tools.Result
	Category            string           `json:"category,omitempty" yaml:"category,omitempty"`
	Recommendations     []Recommendation `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	AvailableCategories []string         `json:"available_categories,omitempty" yaml:"available_categories,omitempty"`
}

// SearchHistoryRequest is the input of search_history
type SearchHistoryRequest struct{}

// SearchHistoryResponse is the output of search_history
type SearchHistoryResponse struct {
	tools.Result
	History       []string `json:"history,omitempty" yaml:"history,omitempty"`
	TotalSearches int      `json:"total_searches" yaml:"total_searches"`
}

func productDetails(p *shop.Product) *ProductDetails {
	return &ProductDetails{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		PriceFormatted: shop.MoneyFloat(p.Price),
		Stock:          p.Stock,
		Features:       p.Features,
		Category:       p.Category,
		Description:    p.Description,
		Rating:         fmt.Sprintf("⭐ %.1f/5.0 (%d reviews)", p.Rating, p.Reviews),
		Available:      p.Available(),
	}
}

// SearchProduct returns the search_product tool
func (s *Shop) SearchProduct() *tools.Function[SearchProductRequest, SearchProductResponse] {
	return tools.MustFunction(SearchProductToolName,
		"Searches the catalog for a product by name with a flexible match and returns its details: price, stock, features, category and rating. "+
			"When nothing matches, it returns suggestions. The search is recorded in the session search history.",
		s.searchProduct)
}

func (s *Shop) searchProduct(ctx context.Context, req *SearchProductRequest) (*SearchProductResponse, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "tool", SearchProductToolName, "product", req.ProductName)

	return withSession(ctx, s, func(sess *shop.Session) (*SearchProductResponse, bool) {
		sess.RecordSearch(req.ProductName)
		metricskey.StatsShopSearches.IncrCounter(1, SearchProductToolName)

		p, ok := s.catalog.Find(req.ProductName)
		if !ok {
			metricskey.StatsShopSearchesNotFound.IncrCounter(1, SearchProductToolName)

			var suggestions []string
			for _, sp := range s.catalog.Suggestions(suggestionsCount) {
				suggestions = append(suggestions, fmt.Sprintf("• %s (%s)", sp.Name, shop.MoneyFloat(sp.Price)))
			}
			return &SearchProductResponse{
				Result:          tools.NotFoundf("product %q was not found", req.ProductName),
				Suggestions:     suggestions,
				SuggestionsText: "Available products:\n" + strings.Join(suggestions, "\n"),
			}, true
		}

		return &SearchProductResponse{
			Result:  tools.Successf("product %q found", p.Name),
			Product: productDetails(p),
		}, true
	})
}

// RecommendProducts returns the recommend_products tool
func (s *Shop) RecommendProducts() *tools.Function[RecommendProductsRequest, RecommendProductsResponse] {
	return tools.MustFunction(RecommendProductsToolName,
		"Recommends the top rated products, optionally within a category. Read-only, it does not use the session.",
		s.recommendProducts).WithReadOnly()
}

func (s *Shop) recommendProducts(ctx context.Context, req *RecommendProductsRequest) (*RecommendProductsResponse, error) {
	category := strings.TrimSpace(req.Category)
	logger.ContextKV(ctx, xlog.DEBUG, "tool", RecommendProductsToolName, "category", category)

	list, err := s.catalog.Recommend(category, recommendCount)
	if err != nil {
		if errors.Is(err, shop.ErrUnknownCategory) {
			return &RecommendProductsResponse{
				Result:              tools.Errorf("there are no products in category %q", category),
				AvailableCategories: s.catalog.Categories(),
			}, nil
		}
		return nil, err
	}

	res := &RecommendProductsResponse{
		Result:   tools.Successf("top %d recommended products", len(list)),
		Category: category,
	}
	if res.Category == "" {
		res.Category = "All"
	}
	for _, p := range list {
		res.Recommendations = append(res.Recommendations, Recommendation{
			Name:        p.Name,
			Price:       shop.MoneyFloat(p.Price),
			Rating:      fmt.Sprintf("⭐ %.1f/5.0", p.Rating),
			Category:    p.Category,
			Description: p.Description,
			Available:   p.Available(),
		})
	}
	return res, nil
}

// SearchHistory returns the search_history tool
func (s *Shop) SearchHistory() *tools.Function[SearchHistoryRequest, SearchHistoryResponse] {
	return tools.MustFunction(SearchHistoryToolName,
		"Shows the most recent product searches of the session. Reads the session search history.",
		s.searchHistory).WithReadOnly()
}

func (s *Shop) searchHistory(ctx context.Context, _ *SearchHistoryRequest) (*SearchHistoryResponse, error) {
	return withSession(ctx, s, func(sess *shop.Session) (*SearchHistoryResponse, bool) {
		if len(sess.SearchHistory) == 0 {
			return &SearchHistoryResponse{
				Result: tools.Empty("there are no recent searches"),
			}, false
		}
		return &SearchHistoryResponse{
			Result:        tools.Successf("last %d searches", min(recentSearchesCount, len(sess.SearchHistory))),
			History:       sess.RecentSearches(recentSearchesCount),
			TotalSearches: sess.SearchCount(),
		}, false
	})
}
