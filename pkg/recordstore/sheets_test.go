package recordstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSpreadsheet emulates the handful of Sheets REST calls the store makes.
type fakeSpreadsheet struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	ids    map[string]int64
	nextID int64
}

var cellRange = regexp.MustCompile(`^A(\d+):B(\d+)$`)

func newFakeSpreadsheet(tabs ...string) *fakeSpreadsheet {
	f := &fakeSpreadsheet{tabs: map[string][][]string{}, ids: map[string]int64{}}
	for _, tab := range tabs {
		f.addTab(tab)
	}
	return f
}

func (f *fakeSpreadsheet) addTab(title string) {
	f.tabs[title] = nil
	f.ids[title] = f.nextID
	f.nextID++
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, item := range req.Requests {
			if item.AddSheet != nil {
				f.addTab(item.AddSheet.Properties.Title)
			}
			if item.DeleteDimension != nil {
				rng := item.DeleteDimension.Range
				for title, id := range f.ids {
					if id != rng.SheetId {
						continue
					}
					rows := f.tabs[title]
					f.tabs[title] = append(rows[:rng.StartIndex:rng.StartIndex], rows[rng.EndIndex:]...)
				}
			}
		}
		writeJSON(w, map[string]string{"spreadsheetId": "sheet-1"})
	case !strings.Contains(path, "/values/"):
		var out []map[string]interface{}
		for title, id := range f.ids {
			out = append(out, map[string]interface{}{"properties": map[string]interface{}{"title": title, "sheetId": id}})
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sheet-1", "sheets": out})
	default:
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		appendRows := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		title, cells, _ := strings.Cut(rng, "!")
		switch {
		case r.Method == http.MethodGet:
			var values [][]string
			if rows := f.tabs[title]; len(rows) > 1 {
				values = rows[1:]
			}
			writeJSON(w, map[string]interface{}{"range": rng, "values": values})
		case appendRows:
			var body sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(f.tabs[title]) == 0 {
				f.tabs[title] = [][]string{{"id", "data"}}
			}
			f.tabs[title] = append(f.tabs[title], toStrings(body.Values)...)
			writeJSON(w, map[string]string{"spreadsheetId": "sheet-1"})
		default:
			var body sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&body)
			m := cellRange.FindStringSubmatch(cells)
			if m == nil {
				http.Error(w, "bad range", http.StatusBadRequest)
				return
			}
			row, _ := strconv.Atoi(m[1])
			for len(f.tabs[title]) < row {
				f.tabs[title] = append(f.tabs[title], []string{})
			}
			f.tabs[title][row-1] = toStrings(body.Values)[0]
			writeJSON(w, map[string]string{"spreadsheetId": "sheet-1"})
		}
	}
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		for _, cell := range row {
			out[i] = append(out[i], cell.(string))
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newSheetsTestStore(t *testing.T, fake *fakeSpreadsheet) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	api, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return NewSheetsStore(api, "sheet-1")
}

func TestSheetsStoreEnsureSheets(t *testing.T) {
	fake := newFakeSpreadsheet(EntityUsers)
	store := newSheetsTestStore(t, fake)

	require.NoError(t, store.EnsureSheets(context.Background()))
	for _, entity := range Entities {
		_, ok := fake.ids[entity]
		assert.True(t, ok, entity)
	}
	assert.Equal(t, [][]string{{"id", "data"}}, fake.tabs[EntityScores])
}

func TestSheetsStoreSaveListDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSpreadsheet()
	store := newSheetsTestStore(t, fake)
	require.NoError(t, store.EnsureSheets(ctx))

	require.NoError(t, store.Save(ctx, EntityDemos, map[string]string{"id": "d1", "topic": "Hàm số"}))
	require.NoError(t, store.Save(ctx, EntityDemos, map[string]string{"id": "d2", "topic": "Phân số"}))
	require.NoError(t, store.Save(ctx, EntityDemos, map[string]string{"id": "d1", "topic": "Hàm số bậc nhất"}))

	records, err := store.List(ctx, EntityDemos)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"id":"d1","topic":"Hàm số bậc nhất"}`, string(records[0]))

	require.NoError(t, store.Delete(ctx, EntityDemos, "d1"))
	records, err = store.List(ctx, EntityDemos)
	require.NoError(t, err)
	require.Len(t, records, 1)
	id, err := RecordID(records[0])
	require.NoError(t, err)
	assert.Equal(t, "d2", id)

	require.NoError(t, store.Delete(ctx, EntityDemos, "missing"))
}

func TestSheetsStoreRejectsOversizedRecord(t *testing.T) {
	store := newSheetsTestStore(t, newFakeSpreadsheet(EntityLessonPlans))
	big := strings.Repeat("x", maxCellChars)
	err := store.Save(context.Background(), EntityLessonPlans, map[string]string{"id": "lp1", "comment": big})
	require.Error(t, err)
}
