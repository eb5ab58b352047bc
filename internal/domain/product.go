// Package domain defines the core entities of the stock dashboard.
// These models are independent of external services and represent the
// canonical data structures used throughout the BFA.
package domain

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// ============================================================
// Products
// ============================================================

// Product is a seller listing enriched with the stock heuristics the
// marketplace does not provide (AvgDailySales, MinStock).
type Product struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	CurrentStock  int     `json:"currentStock"`
	AvgDailySales float64 `json:"avgDailySales"`
	MinStock      int     `json:"minStock"`
	Thumbnail     string  `json:"thumbnail"`
	Category      string  `json:"category,omitempty"`
	Status        string  `json:"status,omitempty"`
	Condition     string  `json:"condition,omitempty"`
	SoldQuantity  int     `json:"sold_quantity,omitempty"`
	LastRestock   string  `json:"lastRestock,omitempty"`
}

// MarketplaceItem is the subset of GET /items/{id} the dashboard reads.
type MarketplaceItem struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Price             float64 `json:"price"`
	AvailableQuantity int     `json:"available_quantity"`
	SoldQuantity      int     `json:"sold_quantity"`
	Thumbnail         string  `json:"thumbnail"`
	CategoryID        string  `json:"category_id"`
	Status            string  `json:"status"`
	Condition         string  `json:"condition"`
}

// ItemSearchResult is returned by GET /users/{id}/items/search.
type ItemSearchResult struct {
	Results []string `json:"results"`
}

// ============================================================
// Stock metrics & projections
// ============================================================

// RiskLevel classifies stock-out urgency.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// StockMetrics is derived from a Product on every read and never stored.
// DaysUntilEmpty is +Inf when the product does not sell.
type StockMetrics struct {
	DaysUntilEmpty        float64   `json:"-"`
	MonthlyDemand         int       `json:"monthlyDemand"`
	RecommendedRestock    int       `json:"recommendedRestock"`
	RiskLevel             RiskLevel `json:"riskLevel"`
	DisplayDaysUntilEmpty string    `json:"displayDaysUntilEmpty"`
}

// NeverEmpties reports whether the projection has no depletion date.
func (m StockMetrics) NeverEmpties() bool {
	return math.IsInf(m.DaysUntilEmpty, 1)
}

// MarshalJSON encodes an infinite DaysUntilEmpty as null; JSON has no Inf.
func (m StockMetrics) MarshalJSON() ([]byte, error) {
	type alias StockMetrics
	var days *float64
	if !m.NeverEmpties() {
		d := m.DaysUntilEmpty
		days = &d
	}
	return json.Marshal(struct {
		DaysUntilEmpty *float64 `json:"daysUntilEmpty"`
		alias
	}{days, alias(m)})
}

// StockHistoryEntry is one projected day of the stock/sales chart.
type StockHistoryEntry struct {
	Date          string `json:"date"`
	Estoque       int    `json:"estoque"`
	Vendas        int    `json:"vendas"`
	EstoqueMinimo int    `json:"estoqueMinimo"`
}

// ProductView pairs a product with its metrics for the product cards.
type ProductView struct {
	Product
	Metrics StockMetrics `json:"metrics"`
}

// ============================================================
// Dashboard aggregates
// ============================================================

// ProductSource tells whether products came from the marketplace or the
// built-in simulated list.
type ProductSource string

const (
	SourceMarketplace ProductSource = "marketplace"
	SourceMock        ProductSource = "mock"
)

// RiskDistribution counts products per risk level (the pie chart).
type RiskDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CriticalProduct is a short entry of the critical-stock alert banner.
type CriticalProduct struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CurrentStock int    `json:"currentStock"`
}

// DashboardSummary is returned by GET /v1/dashboard/summary.
type DashboardSummary struct {
	Total           int               `json:"total"`
	Distribution    RiskDistribution  `json:"distribution"`
	CriticalCount   int               `json:"criticalCount"`
	Critical        []CriticalProduct `json:"critical"`
	TotalStockValue decimal.Decimal   `json:"totalStockValue"`
	Source          ProductSource     `json:"source"`
}
