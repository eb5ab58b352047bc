package projection

import (
	"strings"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// criticalPreview is how many critical products the alert banner lists.
const criticalPreview = 3

// Summarize aggregates risk counts, the critical-stock alert and the value
// of the stock on hand.
func Summarize(products []domain.Product, source domain.ProductSource) domain.DashboardSummary {
	summary := domain.DashboardSummary{
		Total:           len(products),
		Critical:        []domain.CriticalProduct{},
		TotalStockValue: decimal.Zero,
		Source:          source,
	}

	for i := range products {
		p := &products[i]
		switch CalculateMetrics(p).RiskLevel {
		case domain.RiskHigh:
			summary.Distribution.High++
			summary.CriticalCount++
			if len(summary.Critical) < criticalPreview {
				summary.Critical = append(summary.Critical, domain.CriticalProduct{
					ID:           p.ID,
					Title:        p.Title,
					CurrentStock: p.CurrentStock,
				})
			}
		case domain.RiskMedium:
			summary.Distribution.Medium++
		default:
			summary.Distribution.Low++
		}

		value := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.CurrentStock)))
		summary.TotalStockValue = summary.TotalStockValue.Add(value)
	}

	summary.TotalStockValue = summary.TotalStockValue.Round(2)
	return summary
}

// Views pairs each product with its metrics.
func Views(products []domain.Product) []domain.ProductView {
	views := make([]domain.ProductView, 0, len(products))
	for i := range products {
		views = append(views, domain.ProductView{
			Product: products[i],
			Metrics: CalculateMetrics(&products[i]),
		})
	}
	return views
}

// FilterByTitle keeps products whose title contains term, ignoring case.
// An empty term keeps everything; untitled products never match a term.
func FilterByTitle(products []domain.Product, term string) []domain.Product {
	if term == "" {
		return products
	}
	term = strings.ToLower(term)

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Title != "" && strings.Contains(strings.ToLower(p.Title), term) {
			out = append(out, p)
		}
	}
	return out
}
