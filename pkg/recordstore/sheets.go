package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// Sheets caps a single cell at 50k characters.
const maxCellChars = 50000

// SheetsStore keeps one tab per entity in a Google spreadsheet. Column A holds
// the record id and column B the JSON document; row 1 is a header.
type SheetsStore struct {
	api           *sheets.Service
	spreadsheetID string

	// Row positions shift on delete, so writes are serialised.
	mu sync.Mutex
}

// NewSheetsStore constructs the store over an authenticated Sheets service.
func NewSheetsStore(api *sheets.Service, spreadsheetID string) *SheetsStore {
	return &SheetsStore{api: api, spreadsheetID: spreadsheetID}
}

// EnsureSheets adds a tab with a header row for every entity that is missing.
func (s *SheetsStore) EnsureSheets(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.sheetIDs(ctx)
	if err != nil {
		return err
	}
	update := sheets.BatchUpdateSpreadsheetRequest{}
	var missing []string
	for _, entity := range Entities {
		if _, ok := existing[entity]; ok {
			continue
		}
		missing = append(missing, entity)
		update.Requests = append(update.Requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: entity}},
		})
	}
	if len(missing) == 0 {
		return nil
	}
	if _, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetID, &update).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheets: %w", err)
	}
	for _, entity := range missing {
		header := &sheets.ValueRange{Values: [][]interface{}{{"id", "data"}}}
		_, err := s.api.Spreadsheets.Values.Update(s.spreadsheetID, entity+"!A1:B1", header).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write %s header: %w", entity, err)
		}
	}
	return nil
}

func (s *SheetsStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	if err := validEntity(entity); err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, entity)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		if row.data == "" {
			continue
		}
		out = append(out, json.RawMessage(row.data))
	}
	return out, nil
}

func (s *SheetsStore) Save(ctx context.Context, entity string, record interface{}) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	raw, id, err := marshalRecord(record)
	if err != nil {
		return err
	}
	if len(raw) > maxCellChars {
		return fmt.Errorf("save %s: record %s exceeds %d characters", entity, id, maxCellChars)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rows(ctx, entity)
	if err != nil {
		return err
	}
	values := &sheets.ValueRange{Values: [][]interface{}{{id, string(raw)}}}
	for _, row := range rows {
		if row.id != id {
			continue
		}
		target := fmt.Sprintf("%s!A%d:B%d", entity, row.number, row.number)
		if _, err := s.api.Spreadsheets.Values.Update(s.spreadsheetID, target, values).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("save %s: %w", entity, err)
		}
		return nil
	}
	if _, err := s.api.Spreadsheets.Values.Append(s.spreadsheetID, entity+"!A:B", values).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("save %s: %w", entity, err)
	}
	return nil
}

func (s *SheetsStore) Delete(ctx context.Context, entity, id string) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrRecordID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rows(ctx, entity)
	if err != nil {
		return err
	}
	number := 0
	for _, row := range rows {
		if row.id == id {
			number = row.number
			break
		}
	}
	if number == 0 {
		return nil
	}
	ids, err := s.sheetIDs(ctx)
	if err != nil {
		return err
	}
	sheetID, ok := ids[entity]
	if !ok {
		return fmt.Errorf("delete %s: sheet not found", entity)
	}
	update := sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		DeleteDimension: &sheets.DeleteDimensionRequest{Range: &sheets.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(number - 1),
			EndIndex:   int64(number),
		}},
	}}}
	if _, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetID, &update).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	return nil
}

func (s *SheetsStore) Ping(ctx context.Context) error {
	_, err := s.api.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("ping spreadsheet: %w", err)
	}
	return nil
}

type sheetRow struct {
	number int
	id     string
	data   string
}

func (s *SheetsStore) rows(ctx context.Context, entity string) ([]sheetRow, error) {
	resp, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, entity+"!A2:B").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	out := make([]sheetRow, 0, len(resp.Values))
	for i, cells := range resp.Values {
		row := sheetRow{number: i + 2}
		if len(cells) > 0 {
			row.id = strings.TrimSpace(fmt.Sprint(cells[0]))
		}
		if len(cells) > 1 {
			row.data = strings.TrimSpace(fmt.Sprint(cells[1]))
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *SheetsStore) sheetIDs(ctx context.Context) (map[string]int64, error) {
	doc, err := s.api.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("load spreadsheet: %w", err)
	}
	ids := make(map[string]int64, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		if sheet.Properties == nil {
			continue
		}
		ids[sheet.Properties.Title] = sheet.Properties.SheetId
	}
	return ids, nil
}
