// Package kafka publishes newly ingested articles to a Kafka topic so
// downstream consumers (alerting, archival) see each article exactly once
// per dedup key.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vsharha/WorldOnFire-backend/internal/config"
	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

// Writer produces article messages to a Kafka topic.
// It implements refresh.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured article topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishArticles serializes and publishes the batch in a single
// WriteMessages call. Messages are keyed by dedup key so replays of the
// same article land on the same partition.
func (w *Writer) PublishArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(articles))
	for i := range articles {
		msg, err := serializeToMessage(articles[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("published articles", "count", len(articles))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Article into a Kafka message.
func serializeToMessage(a domain.Article) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize article: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.DedupKey(a)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "city", Value: []byte(a.Location)},
			{Key: "published_at", Value: []byte(a.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
