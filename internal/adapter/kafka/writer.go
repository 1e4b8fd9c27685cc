package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/config"
	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces active-case rows to a Kafka topic, one message per region.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Messages
// are keyed by region so a compacted topic keeps the latest row per region.
// The clock stamps published_at; nil uses real time.
func NewWriter(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// LoadBatch serializes and publishes rows to the sink topic in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.ActiveCaseRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs, err := w.messages(rows)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write active-case rows: %w", err)
	}
	w.logger.Debug("active-case rows written", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

// messages serializes one batch with a shared publication time.
func (w *Writer) messages(rows []domain.ActiveCaseRow) ([]kafkago.Message, error) {
	publishedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], publishedAt)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an ActiveCaseRow into a Kafka message.
func serializeToMessage(row domain.ActiveCaseRow, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize active-case row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "start_date", Value: []byte(row.Start.Format(domain.LayoutISO))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
