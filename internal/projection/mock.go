package projection

import "github.com/boddenberg/stockdash-bfa-go/internal/domain"

// MockProducts returns the simulated catalogue shown while no seller account
// is connected. Each call returns a fresh copy.
func MockProducts() []domain.Product {
	return []domain.Product{
		{ID: "MLB001", Title: "Produto Simulado A (Stock Alto)", Price: 199.90, CurrentStock: 75, AvgDailySales: 3, MinStock: 21, Thumbnail: "https://picsum.photos/seed/MLB001/60/60"},
		{ID: "MLB002", Title: "Produto Simulado B (Stock Médio)", Price: 49.50, CurrentStock: 25, AvgDailySales: 1.5, MinStock: 10, Thumbnail: "https://picsum.photos/seed/MLB002/60/60"},
		{ID: "MLB003", Title: "Produto Simulado C (Stock Baixo)", Price: 89.00, CurrentStock: 8, AvgDailySales: 1, MinStock: 7, Thumbnail: "https://picsum.photos/seed/MLB003/60/60"},
		{ID: "MLB004", Title: "Produto Simulado D (Stock Crítico)", Price: 320.00, CurrentStock: 3, AvgDailySales: 0.8, MinStock: 5, Thumbnail: "https://picsum.photos/seed/MLB004/60/60"},
	}
}
