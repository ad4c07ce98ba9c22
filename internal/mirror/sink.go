// Package mirror copies approved records into an external record-keeping system.
// Writes are upserts keyed by one field, so replaying a row never duplicates it.
package mirror

import (
	"context"
	"fmt"

	"marketplace/internal/config"
)

// Cell is one named column value.
type Cell struct {
	Key   string
	Value string
}

// Row is an ordered list of cells; the order defines column order for new sheets.
type Row []Cell

// Get returns the value stored under key.
func (r Row) Get(key string) (string, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Keys returns the column names in row order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}
	return keys
}

// Sink upserts a row into a named sheet, matching existing rows on keyField.
type Sink interface {
	UpsertRow(ctx context.Context, sheet, keyField string, row Row) error
	Close() error
}

// Nop discards rows. It is used when no backend is configured.
type Nop struct{}

func (Nop) UpsertRow(context.Context, string, string, Row) error { return nil }
func (Nop) Close() error { return nil }

// New builds the sink selected by configuration.
func New(ctx context.Context, cfg config.MirrorConfig) (Sink, error) {
	switch cfg.Backend {
	case "", config.MirrorNone:
		return Nop{}, nil
	case config.MirrorSheets:
		return NewSheetsSink(ctx, cfg.Sheets)
	case config.MirrorKafka:
		return NewKafkaSink(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.Backend)
	}
}

func keyValue(keyField string, row Row) (string, error) {
	v, ok := row.Get(keyField)
	if !ok || v == "" {
		return "", fmt.Errorf("row has no value for key field %q", keyField)
	}
	return v, nil
}
