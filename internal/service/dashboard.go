package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"
	"github.com/boddenberg/stockdash-bfa-go/internal/projection"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/dashboard")

// emptyResultTTL is how long an authenticated account with no listings is
// served the simulated catalogue before the marketplace is searched again.
const emptyResultTTL = 30 * time.Second

const refreshFlight = "auth:refresh"

// ClientFactory builds a marketplace client for an application id.
type ClientFactory func(clientID string) port.MarketplaceClient

// DashboardOptions carries the optional collaborators of a Dashboard.
type DashboardOptions struct {
	// DefaultClientID is used when no application id was saved yet.
	DefaultClientID string
	Random          port.RandomSource
	Clock           func() time.Time
}

// ProductList is a product listing tagged with its origin.
type ProductList struct {
	Products []domain.Product
	Source   domain.ProductSource
}

// Dashboard serves the stock dashboard: it owns the marketplace client,
// falls back to simulated products when the seller is not connected and
// derives the projections shown on screen.
type Dashboard struct {
	newClient ClientFactory
	store     port.KeyValueStore
	cache     port.Cache[[]domain.Product]
	notifier  port.Notifier
	random    port.RandomSource
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.RWMutex
	client     port.MarketplaceClient
	emptyUntil map[string]time.Time

	// The refresh token is single use: every call that may rotate it runs
	// under authMu, and concurrent loads of the same listing share one call.
	authMu sync.Mutex
	loads  singleflight.Group

	disconnectReported atomic.Bool
}

// NewDashboard creates the service. The application id saved in store
// takes precedence over opts.DefaultClientID.
func NewDashboard(
	ctx context.Context,
	factory ClientFactory,
	store port.KeyValueStore,
	cache port.Cache[[]domain.Product],
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts DashboardOptions,
) *Dashboard {
	d := &Dashboard{
		newClient: factory,
		store:     store,
		cache:     cache,
		notifier:  notifier,
		random:    opts.Random,
		metrics:   metrics,
		logger:    logger,
		now:       opts.Clock,

		emptyUntil: make(map[string]time.Time),
	}
	if d.random == nil {
		d.random = projection.NewTimeSeededSource()
	}
	if d.now == nil {
		d.now = time.Now
	}

	clientID := opts.DefaultClientID
	saved, ok, err := store.Get(ctx, domain.KeyAppID)
	switch {
	case err != nil:
		logger.Warn("failed to read saved client id", zap.Error(err))
	case ok && saved != "":
		clientID = saved
	}
	d.client = factory(clientID)
	return d
}

func (d *Dashboard) currentClient() port.MarketplaceClient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client
}

// Products returns the seller's listings, or the simulated catalogue when
// the seller is not connected or has nothing listed. forceRefresh skips
// the listing cache.
func (d *Dashboard) Products(ctx context.Context, forceRefresh bool) (ProductList, error) {
	if err := ctx.Err(); err != nil {
		return ProductList{}, err
	}

	ctx, span := tracer.Start(ctx, "Dashboard.Products")
	defer span.End()
	span.SetAttributes(attribute.Bool("products.force_refresh", forceRefresh))

	start := d.now()
	defer func() {
		d.metrics.RecordRequestDuration("products", time.Since(start))
	}()

	client := d.currentClient()
	if !client.IsAuthenticated() {
		if d.disconnectReported.CompareAndSwap(false, true) {
			d.notifier.Report("Não autenticado. Conecte-se para ver produtos reais.", domain.SeverityInfo)
		}
		return mockList(), nil
	}
	d.disconnectReported.Store(false)

	key := productsKey(client.UserID())
	if !forceRefresh {
		if cached, ok := d.cache.Get(key); ok {
			d.metrics.IncrCacheHit("products")
			return ProductList{Products: cached, Source: domain.SourceMarketplace}, nil
		}
		if d.knownEmpty(key) {
			d.metrics.IncrCacheHit("products")
			return mockList(), nil
		}
	}
	d.metrics.IncrCacheMiss("products")

	v, _, shared := d.loads.Do(key, func() (any, error) {
		return d.load(ctx, client), nil
	})
	span.SetAttributes(attribute.Bool("products.shared", shared))
	return v.(ProductList), nil
}

// load fetches the listing once for every caller waiting on the same key,
// so it must outlive the cancellation of the caller that started it.
func (d *Dashboard) load(ctx context.Context, client port.MarketplaceClient) ProductList {
	ctx = context.WithoutCancel(ctx)

	d.authMu.Lock()
	defer d.authMu.Unlock()

	d.notifier.Report("A carregar produtos da sua conta...", domain.SeverityInfo)
	products := client.GetMyProducts(ctx)

	// The user id may have been learned during the call.
	key := productsKey(client.UserID())
	if len(products) > 0 {
		d.cache.Set(key, products)
		d.notifier.Report(fmt.Sprintf("Foram carregados %d produtos.", len(products)), domain.SeveritySuccess)
		return ProductList{Products: products, Source: domain.SourceMarketplace}
	}

	if client.IsAuthenticated() {
		d.markEmpty(key)
		d.notifier.Report("Nenhum produto encontrado na sua conta. A exibir dados simulados.", domain.SeverityInfo)
	}
	d.logger.Info("falling back to simulated products", zap.Bool("authenticated", client.IsAuthenticated()))
	return mockList()
}

func productsKey(userID string) string {
	return "products:" + userID
}

func (d *Dashboard) knownEmpty(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	until, ok := d.emptyUntil[key]
	return ok && d.now().Before(until)
}

func (d *Dashboard) markEmpty(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emptyUntil[key] = d.now().Add(emptyResultTTL)
}

// invalidate drops every cached listing, empty results included.
func (d *Dashboard) invalidate() {
	d.cache.Clear()
	d.mu.Lock()
	clear(d.emptyUntil)
	d.mu.Unlock()
}

func mockList() ProductList {
	return ProductList{Products: projection.MockProducts(), Source: domain.SourceMock}
}

// ProductViews returns the product cards matching term (case-insensitive
// title search) with their metrics.
func (d *Dashboard) ProductViews(ctx context.Context, term string, forceRefresh bool) (*domain.ListResponse[domain.ProductView], error) {
	ctx, span := tracer.Start(ctx, "Dashboard.ProductViews")
	defer span.End()

	list, err := d.Products(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	views := projection.Views(projection.FilterByTitle(list.Products, strings.TrimSpace(term)))
	return &domain.ListResponse[domain.ProductView]{
		Data:   views,
		Total:  len(views),
		Source: list.Source,
	}, nil
}

// Product returns one product card.
func (d *Dashboard) Product(ctx context.Context, id string) (*domain.ProductView, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Product")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	p, err := d.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.ProductView{Product: *p, Metrics: projection.CalculateMetrics(p)}, nil
}

// History simulates the stock chart of a product over days (7, 30, 60 or
// 90; zero selects the default horizon).
func (d *Dashboard) History(ctx context.Context, id string, days int) ([]domain.StockHistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.History")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id), attribute.Int("history.days", days))

	if days == 0 {
		days = projection.DefaultHorizon
	}
	if !projection.ValidHorizon(days) {
		return nil, &domain.ErrValidation{
			Field:   "days",
			Message: fmt.Sprintf("must be one of %v", projection.Horizons()),
		}
	}

	p, err := d.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.BuildStockHistory(*p, days, d.random, d.now()), nil
}

// Summary aggregates the current products for the dashboard header.
func (d *Dashboard) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Summary")
	defer span.End()

	list, err := d.Products(ctx, false)
	if err != nil {
		return nil, err
	}
	summary := projection.Summarize(list.Products, list.Source)
	return &summary, nil
}

// Metrics returns the operational counters of the dashboard.
func (d *Dashboard) Metrics() *domain.DashboardMetrics {
	return d.metrics.Snapshot()
}

func (d *Dashboard) find(ctx context.Context, id string) (*domain.Product, error) {
	list, err := d.Products(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range list.Products {
		if list.Products[i].ID == id {
			return &list.Products[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "product", ID: id}
}
