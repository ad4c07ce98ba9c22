package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"marketplace/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheets keeps tabs in memory with 1-based row numbers like the real API.
type fakeSheets struct {
	mu    sync.Mutex
	tabs  map[string][][]interface{}
	adds  int
	fails error
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{tabs: make(map[string][][]interface{})}
}

func (f *fakeSheets) Titles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for t := range f.tabs {
		titles = append(titles, t)
	}
	return titles, nil
}

func (f *fakeSheets) AddSheet(_ context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	f.tabs[title] = nil
	return nil
}

func (f *fakeSheets) ReadAll(_ context.Context, sheet string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails != nil {
		return nil, f.fails
	}
	out := make([][]interface{}, len(f.tabs[sheet]))
	copy(out, f.tabs[sheet])
	return out, nil
}

func (f *fakeSheets) WriteRow(_ context.Context, sheet string, rowNum int, values []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.tabs[sheet]
	for len(rows) < rowNum {
		rows = append(rows, nil)
	}
	rows[rowNum-1] = append([]interface{}(nil), values...)
	f.tabs[sheet] = rows
	return nil
}

func (f *fakeSheets) AppendRow(_ context.Context, sheet string, values []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs[sheet] = append(f.tabs[sheet], append([]interface{}(nil), values...))
	return nil
}

func supplierRow(id, status string) Row {
	return Row{
		{Key: "request_id", Value: id},
		{Key: "company_name", Value: "Acme Traders"},
		{Key: "status", Value: status},
	}
}

func TestSheetsSink_CreatesSheetAndHeader(t *testing.T) {
	fake := newFakeSheets()
	sink := newSheetsSink(fake)

	require.NoError(t, sink.UpsertRow(context.Background(), "Suppliers", "request_id", supplierRow("r1", "APPROVED")))

	rows := fake.tabs["Suppliers"]
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"request_id", "company_name", "status"}, rows[0])
	assert.Equal(t, []interface{}{"r1", "Acme Traders", "APPROVED"}, rows[1])
	assert.Equal(t, 1, fake.adds)
}

func TestSheetsSink_UpsertIsIdempotentPerKey(t *testing.T) {
	fake := newFakeSheets()
	sink := newSheetsSink(fake)
	ctx := context.Background()

	require.NoError(t, sink.UpsertRow(ctx, "Suppliers", "request_id", supplierRow("r1", "PENDING")))
	require.NoError(t, sink.UpsertRow(ctx, "Suppliers", "request_id", supplierRow("r2", "APPROVED")))
	require.NoError(t, sink.UpsertRow(ctx, "Suppliers", "request_id", supplierRow("r1", "APPROVED")))
	require.NoError(t, sink.UpsertRow(ctx, "Suppliers", "request_id", supplierRow("r1", "APPROVED")))

	rows := fake.tabs["Suppliers"]
	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{"r1", "Acme Traders", "APPROVED"}, rows[1])
	assert.Equal(t, "r2", rows[2][0])
	assert.Equal(t, 1, fake.adds)
}

func TestSheetsSink_GrowsHeaderForNewColumns(t *testing.T) {
	fake := newFakeSheets()
	sink := newSheetsSink(fake)
	ctx := context.Background()

	require.NoError(t, sink.UpsertRow(ctx, "Products", "request_id", Row{{Key: "request_id", Value: "p1"}}))
	require.NoError(t, sink.UpsertRow(ctx, "Products", "request_id", Row{
		{Key: "request_id", Value: "p1"},
		{Key: "price", Value: "10.00"},
	}))

	rows := fake.tabs["Products"]
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"request_id", "price"}, rows[0])
	assert.Equal(t, []interface{}{"p1", "10.00"}, rows[1])
}

func TestSheetsSink_ConcurrentUpsertsOfNewKeyAppendOnce(t *testing.T) {
	fake := newFakeSheets()
	sink := newSheetsSink(fake)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.UpsertRow(context.Background(), "Buyers", "request_id", supplierRow("b1", "APPROVED")))
		}()
	}
	wg.Wait()

	assert.Len(t, fake.tabs["Buyers"], 2)
}

func TestSheetsSink_Errors(t *testing.T) {
	fake := newFakeSheets()
	sink := newSheetsSink(fake)
	ctx := context.Background()

	err := sink.UpsertRow(ctx, "Suppliers", "request_id", Row{{Key: "company_name", Value: "x"}})
	assert.ErrorContains(t, err, "request_id")

	fake.fails = errors.New("quota exceeded")
	err = sink.UpsertRow(ctx, "Suppliers", "request_id", supplierRow("r1", "APPROVED"))
	assert.ErrorContains(t, err, "quota exceeded")
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaSink_KeysMessagesByRequest(t *testing.T) {
	w := &recordingWriter{}
	sink := &KafkaSink{writer: w, topicPrefix: "marketplace."}

	require.NoError(t, sink.UpsertRow(context.Background(), "Suppliers", "request_id", supplierRow("r1", "APPROVED")))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "marketplace.suppliers", msg.Topic)
	assert.Equal(t, []byte("r1"), msg.Key)

	var body struct {
		Sheet string            `json:"sheet"`
		Row   map[string]string `json:"row"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "Suppliers", body.Sheet)
	assert.Equal(t, "APPROVED", body.Row["status"])

	w.err = fmt.Errorf("leader not available")
	assert.ErrorContains(t, sink.UpsertRow(context.Background(), "Suppliers", "request_id", supplierRow("r1", "APPROVED")), "leader not available")
}

func TestNewSelectsBackend(t *testing.T) {
	sink, err := New(context.Background(), config.MirrorConfig{Backend: config.MirrorNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, sink)

	sink, err = New(context.Background(), config.MirrorConfig{
		Backend: config.MirrorKafka,
		Kafka:   config.KafkaConfig{Brokers: []string{"localhost:9092"}, TopicPrefix: "t."},
	})
	require.NoError(t, err)
	require.IsType(t, &KafkaSink{}, sink)
	assert.Equal(t, "t.products", sink.(*KafkaSink).Topic("Products"))
	assert.NoError(t, sink.Close())

	_, err = New(context.Background(), config.MirrorConfig{
		Backend: config.MirrorSheets,
		Sheets:  config.SheetsConfig{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"},
	})
	assert.Error(t, err)

	_, err = New(context.Background(), config.MirrorConfig{Backend: "ftp"})
	assert.Error(t, err)
}
