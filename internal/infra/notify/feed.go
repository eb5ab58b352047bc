// Package notify collects the user-facing messages produced by the
// marketplace client and the dashboard service so the front end can poll
// them as toasts.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCapacity is how many notifications a Feed retains.
const DefaultCapacity = 50

// Feed is a bounded, thread-safe notification log. It implements
// port.Notifier.
type Feed struct {
	mu       sync.RWMutex
	items    []domain.Notification
	capacity int
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewFeed creates a feed keeping the last capacity notifications.
// metrics may be nil.
func NewFeed(capacity int, metrics *observability.Metrics, logger *zap.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Report records a notification and logs it.
func (f *Feed) Report(message string, severity domain.Severity) {
	n := domain.Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: f.now(),
	}

	f.mu.Lock()
	// Ids are assigned under the lock so they sort in feed order.
	n.ID = uuid.Must(uuid.NewV7()).String()
	f.items = append(f.items, n)
	if len(f.items) > f.capacity {
		f.items = append([]domain.Notification(nil), f.items[len(f.items)-f.capacity:]...)
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.IncrNotification(severity)
	}

	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("severity", string(severity)),
		zap.String("message", message),
	}
	if severity == domain.SeverityError {
		f.logger.Warn("notification", fields...)
	} else {
		f.logger.Debug("notification", fields...)
	}
}

// Latest returns the most recent notification, if any.
func (f *Feed) Latest() (domain.Notification, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.items) == 0 {
		return domain.Notification{}, false
	}
	return f.items[len(f.items)-1], true
}

// Since returns the notifications recorded after the one with id, oldest
// first. Ids are time ordered, so an id already dropped from the feed
// still marks a position. An empty or malformed id returns everything
// retained.
func (f *Feed) Since(id string) []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	start := 0
	if _, err := uuid.Parse(id); err == nil {
		start = sort.Search(len(f.items), func(i int) bool {
			return f.items[i].ID > id
		})
	}
	return append([]domain.Notification{}, f.items[start:]...)
}
