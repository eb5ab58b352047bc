package projection

import (
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"
)

// salesJitter is the total width of the uniform noise around the daily
// average, as a fraction of it (±10%).
const salesJitter = 0.2

// DefaultHorizon is the projection length used when none is requested.
const DefaultHorizon = 30

var horizons = []int{7, 30, 60, 90}

// Horizons lists the projection lengths offered by the dashboard.
func Horizons() []int {
	return slices.Clone(horizons)
}

// ValidHorizon reports whether days is one of the offered horizons.
func ValidHorizon(days int) bool {
	return slices.Contains(horizons, days)
}

// BuildStockHistory simulates horizonDays of stock starting at start.
//
// Day 0 is the current stock with no sales. Each following day sells
// round(avg ± 10%) units, drawn from rnd, and stock never drops below
// zero. The series is a simulation, not a forecast: only its shape is
// stable between calls.
func BuildStockHistory(p domain.Product, horizonDays int, rnd port.RandomSource, start time.Time) []domain.StockHistoryEntry {
	if horizonDays <= 0 {
		return []domain.StockHistoryEntry{}
	}

	history := make([]domain.StockHistoryEntry, 0, horizonDays)
	stock := max(0, p.CurrentStock)

	for day := 0; day < horizonDays; day++ {
		sales := 0
		if day > 0 {
			noise := (rnd.Float64() - 0.5) * (p.AvgDailySales * salesJitter)
			sales = max(0, int(math.Round(p.AvgDailySales+noise)))
			stock = max(0, stock-sales)
		}

		history = append(history, domain.StockHistoryEntry{
			Date:          start.AddDate(0, 0, day).Format("02/01"),
			Estoque:       stock,
			Vendas:        sales,
			EstoqueMinimo: p.MinStock,
		})
	}
	return history
}

// lockedSource makes a *rand.Rand safe for concurrent handlers.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// NewRandomSource returns a reproducible source for the given seed.
func NewRandomSource(seed int64) port.RandomSource {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededSource returns a source re-seeded from the clock, used in
// production so every regeneration differs.
func NewTimeSeededSource() port.RandomSource {
	return NewRandomSource(time.Now().UnixNano())
}
