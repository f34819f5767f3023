package local

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

func openTestStore(t *testing.T, logBuf *bytes.Buffer) *Store {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	s, err := Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Load_EmptyReturnsNil(t *testing.T) {
	var buf bytes.Buffer
	s := openTestStore(t, &buf)

	state, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil", state)
	}
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	added := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	done := added.Add(48 * time.Hour)

	tests := []struct {
		name  string
		state *model.DashboardState
	}{
		{
			name:  "no categories",
			state: &model.DashboardState{Categories: []*model.Category{}, LastUpdated: added},
		},
		{
			name: "empty category",
			state: &model.DashboardState{Categories: []*model.Category{
				{ID: "c1", Name: "Empty", Icon: "fas fa-code", Color: "red", Items: []*model.Item{}},
			}, LastUpdated: added},
		},
		{
			name: "unicode and empty notes",
			state: &model.DashboardState{Categories: []*model.Category{
				{ID: "c1", Name: "読書 📚", Icon: "fas fa-book", Color: "blue", Items: []*model.Item{
					{ID: "i1", Title: "吾輩は猫である", URL: "https://example.jp/neko", Type: model.ItemTypeBook, Notes: "", AddedAt: added},
					{ID: "i2", Title: "Ünïcödé ✓", URL: "https://example.com", Type: model.ItemTypeWebsite, Notes: "メモ\n2行目", Completed: true, AddedAt: added, CompletedAt: &done},
				}},
				{ID: "c2", Name: "Second", Items: []*model.Item{}},
			}, LastUpdated: done},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := openTestStore(t, &buf)
			ctx := context.Background()

			if err := s.Save(ctx, tt.state); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.state) {
				t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, tt.state)
			}
		})
	}
}

func TestStore_Load_MalformedIsAbsentAndLogged(t *testing.T) {
	var buf bytes.Buffer
	s := openTestStore(t, &buf)
	ctx := context.Background()

	if err := s.Set(ctx, StateKey, `{"categories": [`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	state, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v, malformed data must not be fatal", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil", state)
	}
	if !strings.Contains(buf.String(), "malformed") {
		t.Errorf("expected malformed data to be logged, got %q", buf.String())
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	var buf bytes.Buffer
	s := openTestStore(t, &buf)
	ctx := context.Background()

	if err := s.Set(ctx, ThemeKey, "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, ThemeKey, "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	v, ok, err := s.Get(ctx, ThemeKey)
	if err != nil || !ok || v != "light" {
		t.Errorf("Get() = %q, %v, %v; want light, true, nil", v, ok, err)
	}

	if err := s.Delete(ctx, ThemeKey); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, ThemeKey); ok {
		t.Error("key should be gone after Delete()")
	}
}
