package projection

import (
	"math"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
)

const (
	minAvgDailySales  = 0.05
	activeSalesWindow = 30
	pausedSalesWindow = 90
	safetyStockDays   = 7
)

// ProductFromListing maps a marketplace item into a Product, deriving the
// daily run-rate and the one-week safety stock from cumulative sales.
// today stamps LastRestock.
func ProductFromListing(item domain.MarketplaceItem, today time.Time) domain.Product {
	sold := item.SoldQuantity

	thumbnail := item.Thumbnail
	if thumbnail == "" {
		thumbnail = "https://http2.mlstatic.com/D_NQ_NP_" + item.ID + "-F.jpg"
	}

	return domain.Product{
		ID:            item.ID,
		Title:         item.Title,
		Price:         item.Price,
		CurrentStock:  item.AvailableQuantity,
		AvgDailySales: AvgDailySales(sold, item.Status),
		MinStock:      MinStock(sold),
		Thumbnail:     thumbnail,
		Category:      item.CategoryID,
		Status:        item.Status,
		Condition:     item.Condition,
		SoldQuantity:  sold,
		LastRestock:   today.Format(time.DateOnly),
	}
}

// AvgDailySales spreads sales over 30 days for active listings and 90 days
// otherwise, floored at 0.05 so idle items still get a finite projection.
func AvgDailySales(soldQuantity int, status string) float64 {
	window := float64(pausedSalesWindow)
	if status == "active" {
		window = activeSalesWindow
	}
	return math.Max(minAvgDailySales, float64(soldQuantity)/window)
}

// MinStock is one week of average monthly sales, at least one unit.
func MinStock(soldQuantity int) int {
	return max(1, int(math.Ceil(float64(soldQuantity)/activeSalesWindow*safetyStockDays)))
}
