//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaadapter "github.com/vsharha/WorldOnFire-backend/internal/adapter/kafka"
	"github.com/vsharha/WorldOnFire-backend/internal/config"
	"github.com/vsharha/WorldOnFire-backend/internal/domain"
	"github.com/vsharha/WorldOnFire-backend/internal/observability"
	"github.com/vsharha/WorldOnFire-backend/internal/refresh"
	"github.com/vsharha/WorldOnFire-backend/internal/source"
	"github.com/vsharha/WorldOnFire-backend/internal/store"
)

const testArticleTopic = "test-news-articles"

// publishedMessage holds a deserialized message read from the article topic.
type publishedMessage struct {
	Article domain.Article
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from article topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var article domain.Article
	require.NoError(t, json.Unmarshal(msg.Value, &article), "unmarshal article message")

	return publishedMessage{
		Article: article,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testArticleTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterRoundTrip verifies the adapter layer: kafkaadapter.Writer
// round-trips an article batch through a real broker with dedup-key message
// keys and city headers.
func TestWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testArticleTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testArticleTopic,
	}
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	published := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	articles := []domain.Article{
		{
			Title:       "Stadium evacuated after gas leak",
			Location:    "London",
			SourceURL:   "https://example.com/stadium",
			PublishedAt: published,
			HeatScore:   2,
		},
		{
			Title:       "Metro line reopens",
			Location:    "Madrid",
			PublishedAt: published,
			HeatScore:   1,
		},
	}
	require.NoError(t, writer.PublishArticles(ctx, articles))

	consumer := newConsumer(t, broker)

	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "https://example.com/stadium", first.Key)
	assert.Equal(t, "London", first.Headers["city"])
	assert.Equal(t, "2026-03-14T10:30:00Z", first.Headers["published_at"])
	assert.Equal(t, "Stadium evacuated after gas leak", first.Article.Title)
	assert.Equal(t, 2, first.Article.HeatScore)

	second := readPublished(ctx, t, consumer)
	assert.Equal(t, domain.DedupKey(articles[1]), second.Key)
	assert.Equal(t, "Madrid", second.Headers["city"])
}

// stubSource serves canned articles for every city.
type stubSource struct {
	byCity map[domain.CityID][]domain.RawArticle
}

func (s *stubSource) Fetch(_ context.Context, city domain.CityID, _ time.Time) ([]domain.RawArticle, error) {
	return s.byCity[city], nil
}

var _ source.Source = (*stubSource)(nil)

// TestRefreshPublishesToKafka wires a full refresh cycle (stub source, real
// sqlite store, real broker) and verifies that only newly ingested articles
// reach the topic: the second cycle over the same window publishes nothing.
func TestRefreshPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testArticleTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testArticleTopic,
	}
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	registry, err := domain.NewRegistry([]domain.City{
		{Name: "London", Country: "United Kingdom", Lat: 51.5074, Lon: -0.1278},
	})
	require.NoError(t, err)

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	src := &stubSource{byCity: map[domain.CityID][]domain.RawArticle{
		"London": {
			{
				Title:       "Bridge closure announced",
				URL:         "https://example.com/bridge",
				PublishedAt: time.Now().UTC().Add(-time.Hour),
			},
		},
	}}

	driver := refresh.NewDriver(registry, src, st, discardLogger(),
		observability.NewMetricsForTesting(), refresh.Options{
			Publisher: writer,
			Workers:   1,
		})

	summary := driver.RunOnce(ctx)
	require.Empty(t, summary.Failures)
	require.Equal(t, 1, summary.Ingested)

	consumer := newConsumer(t, broker)
	msg := readPublished(ctx, t, consumer)
	assert.Equal(t, "https://example.com/bridge", msg.Key)
	assert.Equal(t, domain.CityID("London"), msg.Article.Location)
	assert.Equal(t, 1, msg.Article.HeatScore)

	// Second cycle over the same window: all duplicates, nothing published.
	summary = driver.RunOnce(ctx)
	assert.Equal(t, 0, summary.Ingested)
	assert.Equal(t, 1, summary.Duplicates)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on article topic")
}
