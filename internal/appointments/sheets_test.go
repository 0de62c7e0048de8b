package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
)

// fakeSheet serves the subset of the values API the store calls.
type fakeSheet struct {
	mu   sync.Mutex
	rows [][]interface{}
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows = append(f.rows, body.Values...)
		row := len(f.rows)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Appointments!A" + strconv.Itoa(row) + ":J" + strconv.Itoa(row)},
		})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		rangeA1 := path[strings.Index(path, "/values/")+len("/values/"):]
		rows := f.rows
		if n, ok := singleRow(rangeA1); ok {
			rows = nil
			if n <= len(f.rows) {
				rows = f.rows[n-1 : n]
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": rows})
	case r.Method == http.MethodPut:
		rangeA1 := path[strings.Index(path, "/values/")+len("/values/"):]
		n, _ := singleRow(rangeA1)
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows[n-1] = body.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func singleRow(rangeA1 string) (int, bool) {
	i := strings.Index(rangeA1, "!A")
	if i < 0 {
		return 0, false
	}
	rest := rangeA1[i+2:]
	end := strings.Index(rest, ":")
	if end <= 0 {
		return 0, false
	}
	n := 0
	for _, c := range rest[:end] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, n > 0
}

func newTestSheetsStore(t *testing.T, fake *fakeSheet) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := NewSheetsStore(context.Background(), "sheet-1", "Appointments!A:J",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new sheets store: %v", err)
	}
	return store
}

func TestSheetsStoreAppendQueryUpdate(t *testing.T) {
	fake := &fakeSheet{rows: [][]interface{}{toHeader()}}
	store := newTestSheetsStore(t, fake)
	ctx := context.Background()

	saved, err := store.Append(ctx, Appointment{
		PatientName: "Ana", PhoneNumber: "+15550001", Date: "2026-03-10", Time: "10:00",
		Reason: "checkup", Status: StatusBooked,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved.Ref != "2" {
		t.Fatalf("expected row ref 2, got %q", saved.Ref)
	}

	got, err := store.Query(ctx, Filter{Date: "2026-03-10", Statuses: ActiveStatuses()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Ref != "2" || got[0].PatientName != "Ana" || got[0].DurationMinutes != 60 {
		t.Fatalf("unexpected query result: %#v", got)
	}

	if err := store.Update(ctx, saved.Ref, StatusPatch(StatusCancelled)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Query(ctx, Filter{Statuses: ActiveStatuses()})
	if len(got) != 0 {
		t.Fatalf("expected cancelled row to drop out, got %#v", got)
	}
	if fake.rows[1][0] == "" {
		t.Fatal("row id column should survive an update")
	}
}

func TestSheetsStoreUpdateHeaderRowIsNotFound(t *testing.T) {
	fake := &fakeSheet{rows: [][]interface{}{toHeader()}}
	store := newTestSheetsStore(t, fake)

	if err := store.Update(context.Background(), "1", StatusPatch(StatusCancelled)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func toHeader() []interface{} {
	out := make([]interface{}, len(sheetHeader))
	for i, h := range sheetHeader {
		out[i] = h
	}
	return out
}
