package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated        = "storefront.cart.updated"
	TopicCartCleared        = "storefront.cart.cleared"
	TopicWishlistMigrated   = "storefront.wishlist.migrated"
	TopicWishlistSyncFailed = "storefront.wishlist.sync_failed"
)

// Topics lists every topic the storefront publishes to.
var Topics = []string{TopicCartUpdated, TopicCartCleared, TopicWishlistMigrated, TopicWishlistSyncFailed}

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	Items     []CartItemData  `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// WishlistMigratedData is the payload for a wishlist.migrated event.
type WishlistMigratedData struct {
	ProductIDs []domain.ProductID `json:"product_ids"`
	Migrated   bool               `json:"migrated"`
}

// NoticeData is the payload for a wishlist.sync_failed event.
type NoticeData struct {
	Kind      domain.NoticeKind `json:"kind"`
	ProductID domain.ProductID  `json:"product_id,omitempty"`
	Message   string            `json:"message"`
}

// Publisher sends one event to a single topic.
type Publisher interface {
	Publish(ctx context.Context, event *pkgkafka.Event) error
	Close() error
}

// Producer publishes storefront domain events, one Kafka writer per topic.
// It also forwards advisory notices so downstream consumers can follow
// wishlist sync failures.
type Producer struct {
	topics map[string]Publisher
	logger *slog.Logger
}

// NewProducer creates writers for every storefront topic on brokers.
func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	topics := make(map[string]Publisher, len(Topics))
	for _, topic := range Topics {
		topics[topic] = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(brokers, topic), logger)
	}
	return NewProducerWithPublishers(topics, logger)
}

// NewProducerWithPublishers builds a producer from explicit per-topic
// publishers.
func NewProducerWithPublishers(topics map[string]Publisher, logger *slog.Logger) *Producer {
	return &Producer{topics: topics, logger: logger}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID, accountID string, lines []domain.CartLine, total decimal.Decimal, count int) error {
	items := make([]CartItemData, len(lines))
	for i, l := range lines {
		items[i] = CartItemData{
			ProductID: l.Product.ID.String(),
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		}
	}
	data := CartUpdatedData{Items: items, ItemCount: count, Total: total}
	return p.publish(ctx, TopicCartUpdated, sessionID, accountID, data)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, accountID string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, accountID, struct{}{})
}

// PublishWishlistMigrated publishes a wishlist.migrated event.
func (p *Producer) PublishWishlistMigrated(ctx context.Context, sessionID, accountID string, ids []domain.ProductID, migrated bool) error {
	data := WishlistMigratedData{ProductIDs: ids, Migrated: migrated}
	return p.publish(ctx, TopicWishlistMigrated, sessionID, accountID, data)
}

// Notify publishes a wishlist.sync_failed event. Failures are logged only.
func (p *Producer) Notify(ctx context.Context, n domain.Notice) {
	data := NoticeData{Kind: n.Kind, ProductID: n.ProductID, Message: n.Message}
	if err := p.publish(ctx, TopicWishlistSyncFailed, n.SessionID, n.AccountID, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish notice",
			slog.String("kind", string(n.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) publish(ctx context.Context, topic, sessionID, accountID string, data any) error {
	pub, ok := p.topics[topic]
	if !ok {
		return fmt.Errorf("no publisher for topic %s", topic)
	}

	event, err := pkgkafka.NewEvent(topic, sessionID, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.AccountID = accountID
	event.RequestID = logger.CorrelationIDFromContext(ctx)

	if err := pub.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// Close flushes and closes every writer.
func (p *Producer) Close() error {
	var errs []error
	for _, pub := range p.topics {
		if err := pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
