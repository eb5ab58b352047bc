package projection_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMetrics_CriticalScenario(t *testing.T) {
	p := &domain.Product{CurrentStock: 3, AvgDailySales: 0.8, MinStock: 5}

	m := projection.CalculateMetrics(p)

	assert.Equal(t, domain.RiskHigh, m.RiskLevel)
	assert.Equal(t, 4.0, m.DaysUntilEmpty)
	assert.Equal(t, "4", m.DisplayDaysUntilEmpty)
	assert.Equal(t, 24, m.MonthlyDemand)
	assert.Equal(t, 26, m.RecommendedRestock)
}

func TestCalculateMetrics_NoSalesNeverEmpties(t *testing.T) {
	for _, avg := range []float64{0, -1} {
		m := projection.CalculateMetrics(&domain.Product{CurrentStock: 10, AvgDailySales: avg, MinStock: 2})

		assert.True(t, math.IsInf(m.DaysUntilEmpty, 1), "avg=%v", avg)
		assert.True(t, m.NeverEmpties())
		assert.Equal(t, "∞", m.DisplayDaysUntilEmpty)
	}
}

func TestCalculateMetrics_Degenerate(t *testing.T) {
	for name, p := range map[string]*domain.Product{
		"nil":       nil,
		"nan sales": {CurrentStock: 5, AvgDailySales: math.NaN(), MinStock: 1},
	} {
		t.Run(name, func(t *testing.T) {
			m := projection.CalculateMetrics(p)
			assert.Equal(t, domain.StockMetrics{RiskLevel: domain.RiskLow, DisplayDaysUntilEmpty: "N/D"}, m)
		})
	}
}

func TestCalculateMetrics_RestockNeverNegative(t *testing.T) {
	m := projection.CalculateMetrics(&domain.Product{CurrentStock: 500, AvgDailySales: 1, MinStock: 5})

	assert.Equal(t, 0, m.RecommendedRestock)
	assert.Equal(t, domain.RiskLow, m.RiskLevel)
}

func TestClassifyRisk_Boundaries(t *testing.T) {
	cases := []struct {
		stock, min int
		want       domain.RiskLevel
	}{
		{0, 0, domain.RiskHigh},
		{10, 10, domain.RiskHigh},
		{11, 10, domain.RiskMedium},
		{15, 10, domain.RiskMedium},
		{16, 10, domain.RiskLow},
		{3, 2, domain.RiskMedium},
		{4, 2, domain.RiskLow},
		{1, 0, domain.RiskLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, projection.ClassifyRisk(tc.stock, tc.min), "stock=%d min=%d", tc.stock, tc.min)
	}
}

func TestStockMetrics_JSONEncodesInfinityAsNull(t *testing.T) {
	m := projection.CalculateMetrics(&domain.Product{CurrentStock: 10, AvgDailySales: 0, MinStock: 2})

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Nil(t, out["daysUntilEmpty"])
	assert.Equal(t, "∞", out["displayDaysUntilEmpty"])
	assert.Equal(t, "low", out["riskLevel"])

	finite, err := json.Marshal(projection.CalculateMetrics(&domain.Product{CurrentStock: 3, AvgDailySales: 0.8, MinStock: 5}))
	require.NoError(t, err)
	assert.Contains(t, string(finite), `"daysUntilEmpty":4`)
}

func TestProductFromListing_DerivedFields(t *testing.T) {
	today := time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC)

	active := projection.ProductFromListing(domain.MarketplaceItem{
		ID: "MLB10", Title: "Caneca", Price: 35.5, AvailableQuantity: 12,
		SoldQuantity: 45, Status: "active", CategoryID: "MLB1234", Condition: "new",
		Thumbnail: "http://img/1.jpg",
	}, today)

	assert.Equal(t, 1.5, active.AvgDailySales)
	assert.Equal(t, 11, active.MinStock) // ceil(45/30*7) = ceil(10.5)
	assert.Equal(t, 12, active.CurrentStock)
	assert.Equal(t, "MLB1234", active.Category)
	assert.Equal(t, "2024-05-17", active.LastRestock)
	assert.Equal(t, "http://img/1.jpg", active.Thumbnail)

	paused := projection.ProductFromListing(domain.MarketplaceItem{ID: "MLB11", SoldQuantity: 45, Status: "paused"}, today)
	assert.Equal(t, 0.5, paused.AvgDailySales)
	assert.Equal(t, "https://http2.mlstatic.com/D_NQ_NP_MLB11-F.jpg", paused.Thumbnail)
}

func TestProductFromListing_Floors(t *testing.T) {
	p := projection.ProductFromListing(domain.MarketplaceItem{ID: "MLB12", Status: "active"}, time.Now())

	assert.Equal(t, 0.05, p.AvgDailySales)
	assert.Equal(t, 1, p.MinStock)
	assert.False(t, projection.CalculateMetrics(&p).NeverEmpties())
}
