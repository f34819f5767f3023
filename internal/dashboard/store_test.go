package dashboard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

func newTestStore() *Store {
	s := NewStore(nil)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	return s
}

func TestStore_QuickAddItem_GoodreadsIsBook(t *testing.T) {
	s := newTestStore()

	c, err := s.AddCategory("Books", "fas fa-book", "blue")
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}

	it, err := s.QuickAddItem(c.ID, "https://goodreads.com/x")
	if err != nil {
		t.Fatalf("QuickAddItem() error = %v", err)
	}

	if len(c.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(c.Items))
	}
	if it.Type != model.ItemTypeBook {
		t.Errorf("type = %q, want %q", it.Type, model.ItemTypeBook)
	}
	if it.Completed {
		t.Error("new item should not be completed")
	}
	if it.Title != "Goodreads Book" {
		t.Errorf("title = %q, want %q", it.Title, "Goodreads Book")
	}
	if it.Notes != "" {
		t.Errorf("notes = %q, want empty", it.Notes)
	}
}

func TestStore_AddItem_RejectsEmptyFields(t *testing.T) {
	s := newTestStore()
	c, _ := s.AddCategory("Coding", "", "")

	tests := []struct {
		name string
		in   ItemInput
	}{
		{"empty url", ItemInput{Title: "t"}},
		{"empty title", ItemInput{URL: "https://x"}},
		{"blank url", ItemInput{Title: "t", URL: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddItem(c.ID, tt.in)
			if !errors.Is(err, ErrEmptyField) {
				t.Errorf("err = %v, want ErrEmptyField", err)
			}
			if len(c.Items) != 0 {
				t.Errorf("items = %d, want no partial mutation", len(c.Items))
			}
		})
	}
}

func TestStore_AddItem_UnknownCategory(t *testing.T) {
	s := newTestStore()
	_, err := s.AddItem("missing", ItemInput{Title: "t", URL: "https://x"})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("err = %v, want ErrCategoryNotFound", err)
	}
}

func TestStore_ToggleItem_TwiceRestoresState(t *testing.T) {
	s := newTestStore()
	c, _ := s.AddCategory("Coding", "", "")
	it, _ := s.AddItem(c.ID, ItemInput{Title: "Go", URL: "https://go.dev"})

	if _, err := s.ToggleItem(c.ID, it.ID); err != nil {
		t.Fatalf("ToggleItem() error = %v", err)
	}
	if !it.Completed || it.CompletedAt == nil {
		t.Fatalf("after first toggle: completed=%v completedAt=%v", it.Completed, it.CompletedAt)
	}

	if _, err := s.ToggleItem(c.ID, it.ID); err != nil {
		t.Fatalf("ToggleItem() error = %v", err)
	}
	if it.Completed {
		t.Error("after second toggle item should be incomplete")
	}
	if it.CompletedAt != nil {
		t.Error("after second toggle completedAt should be absent")
	}
}

func TestStore_RemoveCategory_CascadesItems(t *testing.T) {
	s := newTestStore()
	a, _ := s.AddCategory("A", "", "")
	b, _ := s.AddCategory("B", "", "")
	s.AddItem(a.ID, ItemInput{Title: "1", URL: "https://1"})
	s.AddItem(a.ID, ItemInput{Title: "2", URL: "https://2"})
	it, _ := s.AddItem(b.ID, ItemInput{Title: "3", URL: "https://3"})
	s.ToggleItem(b.ID, it.ID)

	if err := s.RemoveCategory(a.ID); err != nil {
		t.Fatalf("RemoveCategory() error = %v", err)
	}

	overall := s.Overall()
	if overall.Total != 1 || overall.Completed != 1 || overall.Percent != 100 {
		t.Errorf("overall = %+v, want {1 1 100}", overall)
	}
	if err := s.RemoveCategory(a.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("second remove err = %v, want ErrCategoryNotFound", err)
	}
}

func TestStore_RemoveItem_OnlyAffectsOneEntry(t *testing.T) {
	s := newTestStore()
	a, _ := s.AddCategory("A", "", "")
	b, _ := s.AddCategory("B", "", "")
	first, _ := s.AddItem(a.ID, ItemInput{Title: "1", URL: "https://1"})
	s.AddItem(a.ID, ItemInput{Title: "2", URL: "https://2"})
	s.AddItem(b.ID, ItemInput{Title: "3", URL: "https://3"})

	if err := s.RemoveItem(a.ID, first.ID); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}

	pa, _ := s.Progress(a.ID)
	pb, _ := s.Progress(b.ID)
	if pa.Total != 1 {
		t.Errorf("category A total = %d, want 1", pa.Total)
	}
	if pb.Total != 1 {
		t.Errorf("category B total = %d, want 1", pb.Total)
	}
	if err := s.RemoveItem(a.ID, first.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestCategoryProgress(t *testing.T) {
	tests := []struct {
		name      string
		completed []bool
		want      Progress
	}{
		{"empty", nil, Progress{0, 0, 0}},
		{"none done", []bool{false, false}, Progress{2, 0, 0}},
		{"one third", []bool{true, false, false}, Progress{3, 1, 33}},
		{"two thirds", []bool{true, true, false}, Progress{3, 2, 67}},
		{"half rounds up", []bool{true, false, false, false, false, false, false, false}, Progress{8, 1, 13}},
		{"all", []bool{true, true}, Progress{2, 2, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &model.Category{ID: "c"}
			for i, done := range tt.completed {
				c.Items = append(c.Items, &model.Item{ID: fmt.Sprint(i), Completed: done})
			}
			got := CategoryProgress(c)
			if got != tt.want {
				t.Errorf("CategoryProgress() = %+v, want %+v", got, tt.want)
			}
			if got.Completed > got.Total {
				t.Error("completed exceeds total")
			}
		})
	}
}

func TestStore_ApplyTitle_RequiresExistingItem(t *testing.T) {
	s := newTestStore()
	c, _ := s.AddCategory("A", "", "")
	it, _ := s.QuickAddItem(c.ID, "https://example.com/post")

	if !s.ApplyTitle(it.ID, "  Real Title  ") {
		t.Fatal("ApplyTitle() should update existing item")
	}
	if it.Title != "Real Title" {
		t.Errorf("title = %q, want %q", it.Title, "Real Title")
	}

	s.RemoveItem(c.ID, it.ID)
	if s.ApplyTitle(it.ID, "Late Title") {
		t.Error("ApplyTitle() should not update a deleted item")
	}
	if s.ApplyTitle("whatever", "") {
		t.Error("ApplyTitle() should ignore empty titles")
	}
}

func TestStore_UpdateItemAndRename(t *testing.T) {
	s := newTestStore()
	c, _ := s.AddCategory("A", "", "")
	it, _ := s.AddItem(c.ID, ItemInput{Title: "t", URL: "https://x", Type: model.ItemTypeBook})

	notes := "日本語のメモ"
	typ := model.ItemType("bogus")
	if err := s.UpdateItem(c.ID, it.ID, ItemPatch{Notes: &notes, Type: &typ}); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if it.Notes != notes || it.Type != model.ItemTypeOther {
		t.Errorf("item = %+v", it)
	}

	empty := " "
	if err := s.UpdateItem(c.ID, it.ID, ItemPatch{Title: &empty}); !errors.Is(err, ErrEmptyField) {
		t.Errorf("err = %v, want ErrEmptyField", err)
	}

	if err := s.RenameCategory(c.ID, "  Renamed "); err != nil {
		t.Fatalf("RenameCategory() error = %v", err)
	}
	if c.Name != "Renamed" {
		t.Errorf("name = %q", c.Name)
	}
	if err := s.RenameCategory(c.ID, ""); !errors.Is(err, ErrEmptyField) {
		t.Errorf("err = %v, want ErrEmptyField", err)
	}
}

func TestStore_EnsureDefaults(t *testing.T) {
	s := newTestStore()
	if !s.EnsureDefaults() {
		t.Fatal("EnsureDefaults() should seed an empty store")
	}
	if len(s.Categories()) != len(DefaultCategories) {
		t.Errorf("categories = %d, want %d", len(s.Categories()), len(DefaultCategories))
	}
	if s.EnsureDefaults() {
		t.Error("EnsureDefaults() should not seed twice")
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
