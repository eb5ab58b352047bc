// Package projection derives stock-depletion metrics and forward-looking
// stock/sales series from a product's current stock and sales velocity.
// Everything here is pure except BuildStockHistory, which draws from an
// injected random source.
package projection

import (
	"math"
	"strconv"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
)

const (
	// DaysPerMonth is the demand window used for restock suggestions.
	DaysPerMonth = 30

	// mediumRiskFactor scales MinStock into the upper MEDIUM bound.
	mediumRiskFactor = 1.5

	infinitySymbol = "∞"
	notAvailable   = "N/D"
)

// CalculateMetrics derives the stock metrics of a product.
//
// A nil product, or one whose stock or sales are not numbers, yields a
// zeroed LOW-risk result displayed as "N/D".
func CalculateMetrics(p *domain.Product) domain.StockMetrics {
	if p == nil || math.IsNaN(p.AvgDailySales) {
		return domain.StockMetrics{
			RiskLevel:             domain.RiskLow,
			DisplayDaysUntilEmpty: notAvailable,
		}
	}

	daysUntilEmpty := math.Inf(1)
	if p.AvgDailySales > 0 {
		daysUntilEmpty = math.Ceil(float64(p.CurrentStock) / p.AvgDailySales)
	}

	monthlyDemand := int(math.Ceil(p.AvgDailySales * DaysPerMonth))
	recommended := max(0, monthlyDemand+p.MinStock-p.CurrentStock)

	display := infinitySymbol
	if !math.IsInf(daysUntilEmpty, 1) {
		display = strconv.FormatFloat(daysUntilEmpty, 'f', -1, 64)
	}

	return domain.StockMetrics{
		DaysUntilEmpty:        daysUntilEmpty,
		MonthlyDemand:         monthlyDemand,
		RecommendedRestock:    recommended,
		RiskLevel:             ClassifyRisk(p.CurrentStock, p.MinStock),
		DisplayDaysUntilEmpty: display,
	}
}

// ClassifyRisk buckets stock against the minimum. Both thresholds are
// inclusive on the risky side.
func ClassifyRisk(currentStock, minStock int) domain.RiskLevel {
	switch {
	case currentStock <= minStock:
		return domain.RiskHigh
	case float64(currentStock) <= float64(minStock)*mediumRiskFactor:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
