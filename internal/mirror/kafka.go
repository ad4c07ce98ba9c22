package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/config"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each row to a per-sheet topic keyed by the row key. On a
// log-compacted topic the latest message per key is the current row, which gives
// upsert semantics to downstream readers.
type KafkaSink struct {
	writer      messageWriter
	topicPrefix string
}

// NewKafkaSink creates a sink with one reusable writer for all topics.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           5 * time.Millisecond,
		},
		topicPrefix: cfg.TopicPrefix,
	}
}

// Topic returns the topic rows of sheet are written to.
func (k *KafkaSink) Topic(sheet string) string {
	return k.topicPrefix + strings.ToLower(sheet)
}

func (k *KafkaSink) UpsertRow(ctx context.Context, sheet, keyField string, row Row) error {
	key, err := keyValue(keyField, row)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(row))
	for _, c := range row {
		fields[c.Key] = c.Value
	}
	body, err := json.Marshal(struct {
		Sheet   string            `json:"sheet"`
		KeyName string            `json:"key_field"`
		Row     map[string]string `json:"row"`
	}{Sheet: sheet, KeyName: keyField, Row: fields})
	if err != nil {
		return fmt.Errorf("encode mirror row: %w", err)
	}

	msg := kafka.Message{
		Topic: k.Topic(sheet),
		Key:   []byte(key),
		Value: body,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish mirror row to %s: %w", msg.Topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
