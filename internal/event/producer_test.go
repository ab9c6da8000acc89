package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// --- Fake Publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []*pkgkafka.Event
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, e *pkgkafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestProducer() (*Producer, map[string]*fakePublisher) {
	fakes := make(map[string]*fakePublisher)
	topics := make(map[string]Publisher)
	for _, topic := range Topics {
		f := &fakePublisher{}
		fakes[topic] = f
		topics[topic] = f
	}
	l := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewProducerWithPublishers(topics, l), fakes
}

// ----- Cart events -----

func TestProducer_PublishCartUpdated(t *testing.T) {
	p, fakes := newTestProducer()
	ctx := logger.WithCorrelationID(context.Background(), "req-1")

	lines := []domain.CartLine{{
		Product:  domain.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("4.50")},
		Quantity: 2,
	}}
	require.NoError(t, p.PublishCartUpdated(ctx, "sess-1", "acct-1", lines, decimal.RequireFromString("9"), 2))

	published := fakes[TopicCartUpdated].events
	require.Len(t, published, 1)
	e := published[0]
	assert.Equal(t, TopicCartUpdated, e.Type)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, "acct-1", e.AccountID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, SourceStorefront, e.Source)

	var data CartUpdatedData
	require.NoError(t, json.Unmarshal(e.Data, &data))
	require.Len(t, data.Items, 1)
	assert.Equal(t, "p1", data.Items[0].ProductID)
	assert.Equal(t, 2, data.ItemCount)
	assert.True(t, data.Total.Equal(decimal.NewFromInt(9)))
}

func TestProducer_PublishCartCleared(t *testing.T) {
	p, fakes := newTestProducer()

	require.NoError(t, p.PublishCartCleared(context.Background(), "sess-1", ""))

	require.Len(t, fakes[TopicCartCleared].events, 1)
	assert.Empty(t, fakes[TopicCartUpdated].events)
}

func TestProducer_PublishError(t *testing.T) {
	p, fakes := newTestProducer()
	fakes[TopicCartCleared].err = errors.New("broker down")

	err := p.PublishCartCleared(context.Background(), "sess-1", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCartCleared)
}

// ----- Wishlist events -----

func TestProducer_PublishWishlistMigrated(t *testing.T) {
	p, fakes := newTestProducer()

	require.NoError(t, p.PublishWishlistMigrated(context.Background(), "sess-1", "acct-1", []domain.ProductID{"a", "b"}, true))

	require.Len(t, fakes[TopicWishlistMigrated].events, 1)
	var data WishlistMigratedData
	require.NoError(t, json.Unmarshal(fakes[TopicWishlistMigrated].events[0].Data, &data))
	assert.Equal(t, []domain.ProductID{"a", "b"}, data.ProductIDs)
	assert.True(t, data.Migrated)
}

func TestProducer_Notify(t *testing.T) {
	p, fakes := newTestProducer()

	p.Notify(context.Background(), domain.Notice{
		Kind:      domain.NoticeWishlistSyncFailed,
		SessionID: "sess-1",
		AccountID: "acct-1",
		ProductID: "p1",
		Message:   "could not save",
	})

	require.Len(t, fakes[TopicWishlistSyncFailed].events, 1)
	e := fakes[TopicWishlistSyncFailed].events[0]
	assert.Equal(t, "acct-1", e.AccountID)
	assert.JSONEq(t, `{"kind":"wishlist_sync_failed","product_id":"p1","message":"could not save"}`, string(e.Data))
}

func TestProducer_NotifySwallowsErrors(t *testing.T) {
	p, fakes := newTestProducer()
	fakes[TopicWishlistSyncFailed].err = errors.New("broker down")

	assert.NotPanics(t, func() {
		p.Notify(context.Background(), domain.Notice{Kind: domain.NoticeWishlistSyncFailed})
	})
}

func TestProducer_UnknownTopic(t *testing.T) {
	p := NewProducerWithPublishers(map[string]Publisher{}, slog.Default())

	err := p.PublishCartCleared(context.Background(), "sess-1", "")

	assert.Error(t, err)
}

func TestProducer_Close(t *testing.T) {
	p, fakes := newTestProducer()

	require.NoError(t, p.Close())

	for topic, f := range fakes {
		assert.True(t, f.closed, topic)
	}
}
