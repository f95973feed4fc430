package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/config"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Writer produces region records to a Kafka topic, one message per record.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes and publishes the run's records in a single WriteMessages call.
func (w *Writer) Load(ctx context.Context, records []domain.RegionRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("published region records", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RegionRecord into a Kafka message keyed by
// its coordinates.
func serializeToMessage(record domain.RegionRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region record: %w", err)
	}
	key := strconv.FormatFloat(record.Latitude, 'f', 5, 64) + "," + strconv.FormatFloat(record.Longitude, 'f', 5, 64)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "intensity", Value: []byte(record.Intensity)},
			{Key: "observation_timestamp", Value: []byte(record.ObservationTimestamp)},
			{Key: "cluster", Value: []byte(strconv.Itoa(record.Cluster))},
		},
	}, nil
}
