package mirror

import (
	"context"
	"fmt"
	"os"
	"sync"

	"marketplace/internal/config"
	"marketplace/internal/logging"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetClient is the subset of the Sheets API the sink needs.
type sheetClient interface {
	Titles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string) error
	ReadAll(ctx context.Context, sheet string) ([][]interface{}, error)
	WriteRow(ctx context.Context, sheet string, rowNum int, values []interface{}) error
	AppendRow(ctx context.Context, sheet string, values []interface{}) error
}

// SheetsSink upserts rows into tabs of one Google spreadsheet. The first row of every tab
// is the header; a missing tab is created with the row's columns as its header.
type SheetsSink struct {
	client sheetClient
	log    zerolog.Logger

	mu    sync.Mutex
	known map[string]bool
	locks map[string]*sync.Mutex
}

// NewSheetsSink authenticates with a service-account credentials file.
func NewSheetsSink(ctx context.Context, cfg config.SheetsConfig) (*SheetsSink, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newSheetsSink(&sheetsAPI{svc: svc, spreadsheetID: cfg.SpreadsheetID}), nil
}

func newSheetsSink(client sheetClient) *SheetsSink {
	return &SheetsSink{
		client: client,
		log:    logging.Component("mirror.sheets"),
		known:  make(map[string]bool),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *SheetsSink) sheetLock(sheet string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sheet]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sheet] = l
	}
	return l
}

// UpsertRow updates the row whose keyField column equals the row's key, or appends it.
// Writes to one tab are serialized so two concurrent upserts of a new key cannot both append.
func (s *SheetsSink) UpsertRow(ctx context.Context, sheet, keyField string, row Row) error {
	key, err := keyValue(keyField, row)
	if err != nil {
		return err
	}

	l := s.sheetLock(sheet)
	l.Lock()
	defer l.Unlock()

	if err := s.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	values, err := s.client.ReadAll(ctx, sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var header []string
	if len(values) > 0 {
		header = toStrings(values[0])
	}
	header, changed := mergeHeader(header, row.Keys())
	if changed {
		if err := s.client.WriteRow(ctx, sheet, 1, toInterfaces(header)); err != nil {
			return fmt.Errorf("write header of %s: %w", sheet, err)
		}
	}

	keyCol := indexOf(header, keyField)
	line := make([]interface{}, len(header))
	for i, col := range header {
		v, _ := row.Get(col)
		line[i] = v
	}

	for i := 1; i < len(values); i++ {
		cells := values[i]
		if keyCol < len(cells) && fmt.Sprint(cells[keyCol]) == key {
			// Keep columns this row does not carry.
			for c := range line {
				if _, ok := row.Get(header[c]); !ok && c < len(cells) {
					line[c] = cells[c]
				}
			}
			if err := s.client.WriteRow(ctx, sheet, i+1, line); err != nil {
				return fmt.Errorf("update row %d of %s: %w", i+1, sheet, err)
			}
			s.log.Debug().Str("sheet", sheet).Str("key", key).Int("row", i+1).Msg("mirror row updated")
			return nil
		}
	}

	if err := s.client.AppendRow(ctx, sheet, line); err != nil {
		return fmt.Errorf("append row to %s: %w", sheet, err)
	}
	s.log.Debug().Str("sheet", sheet).Str("key", key).Msg("mirror row appended")
	return nil
}

func (s *SheetsSink) ensureSheet(ctx context.Context, sheet string) error {
	s.mu.Lock()
	known := s.known[sheet]
	s.mu.Unlock()
	if known {
		return nil
	}

	titles, err := s.client.Titles(ctx)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	if indexOf(titles, sheet) < 0 {
		if err := s.client.AddSheet(ctx, sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
		s.log.Info().Str("sheet", sheet).Msg("created mirror sheet")
	}

	s.mu.Lock()
	s.known[sheet] = true
	s.mu.Unlock()
	return nil
}

func (s *SheetsSink) Close() error { return nil }

// mergeHeader appends the keys missing from header and reports whether it grew.
func mergeHeader(header, keys []string) ([]string, bool) {
	changed := false
	for _, k := range keys {
		if indexOf(header, k) < 0 {
			header = append(header, k)
			changed = true
		}
	}
	return header, changed
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func toStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprint(c)
	}
	return out
}

func toInterfaces(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

// sheetsAPI adapts the generated Sheets client to sheetClient.
type sheetsAPI struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (a *sheetsAPI) Titles(ctx context.Context) ([]string, error) {
	resp, err := a.svc.Spreadsheets.Get(a.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (a *sheetsAPI) AddSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	_, err := a.svc.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (a *sheetsAPI) ReadAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, quoteSheet(sheet)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *sheetsAPI) WriteRow(ctx context.Context, sheet string, rowNum int, values []interface{}) error {
	rng := fmt.Sprintf("%s!A%d", quoteSheet(sheet), rowNum)
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (a *sheetsAPI) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	rng := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func quoteSheet(sheet string) string {
	return "'" + sheet + "'"
}
