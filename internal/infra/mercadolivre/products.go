package mercadolivre

import (
	"context"
	"fmt"
	"net/url"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/projection"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	searchLimit    = 50
	maxDetailItems = 15
)

// GetMyProducts lists the seller's most recent listings as products. Items
// whose details cannot be fetched are dropped. It never returns nil.
func (c *Client) GetMyProducts(ctx context.Context) []domain.Product {
	ctx, span := tracer.Start(ctx, "mercadolivre.GetMyProducts")
	defer span.End()

	if c.UserID() == "" {
		c.notifier.Report("User ID não encontrado. Tentando renovar sessão...", domain.SeverityInfo)
		if !c.RefreshTokenFlow(ctx) || c.UserID() == "" {
			c.notifier.Report("Não foi possível obter User ID. Por favor, reconecte.", domain.SeverityError)
			return []domain.Product{}
		}
	}
	userID := c.UserID()
	span.SetAttributes(attribute.String("ml.user_id", userID))

	var search domain.ItemSearchResult
	searchURL := fmt.Sprintf("%s/users/%s/items/search?limit=%d&orders=start_time_desc",
		c.apiBaseURL, url.PathEscape(userID), searchLimit)
	if err := c.doAuthenticated(ctx, searchURL, &search); err != nil {
		c.logger.Error("item search failed", zap.String("user_id", userID), zap.Error(err))
		c.notifier.Report(fmt.Sprintf("Erro geral ao buscar produtos: %s.", err), domain.SeverityError)
		return []domain.Product{}
	}
	if len(search.Results) == 0 {
		return []domain.Product{}
	}

	ids := search.Results
	if len(ids) > maxDetailItems {
		ids = ids[:maxDetailItems]
	}
	span.SetAttributes(attribute.Int("ml.items", len(ids)))

	today := c.now()
	fetched := make([]*domain.Product, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			var item domain.MarketplaceItem
			itemURL := fmt.Sprintf("%s/items/%s", c.apiBaseURL, url.PathEscape(id))
			if err := c.doAuthenticated(ctx, itemURL, &item); err != nil {
				c.logger.Warn("dropping item", zap.String("item_id", id), zap.Error(err))
				return nil
			}
			p := projection.ProductFromListing(item, today)
			fetched[i] = &p
			return nil
		})
	}
	_ = g.Wait()

	products := make([]domain.Product, 0, len(fetched))
	for _, p := range fetched {
		if p != nil {
			products = append(products, *p)
		}
	}

	dropped := len(ids) - len(products)
	if c.metrics != nil {
		c.metrics.AddProducts(len(products), dropped)
	}
	if len(products) == 0 {
		c.notifier.Report("Não foi possível carregar detalhes dos produtos. Alguns pedidos podem ter falhado.", domain.SeverityError)
	}

	c.logger.Info("products fetched",
		zap.String("user_id", userID),
		zap.Int("listed", len(search.Results)),
		zap.Int("fetched", len(products)),
		zap.Int("dropped", dropped),
	)
	return products
}
