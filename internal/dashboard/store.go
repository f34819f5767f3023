// Package dashboard はカテゴリとアイテムのツリーを保持するインメモリのエンティティストアを提供する。
// I/Oは行わない。永続化は storage パッケージと sync パッケージが担当する。
package dashboard

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/devdash/internal/model"
)

var (
	// ErrCategoryNotFound は指定IDのカテゴリが存在しないことを示す。
	ErrCategoryNotFound = errors.New("category not found")
	// ErrItemNotFound は指定IDのアイテムが存在しないことを示す。
	ErrItemNotFound = errors.New("item not found")
	// ErrEmptyField は必須フィールドが空であることを示す。
	ErrEmptyField = errors.New("required field is empty")
)

// Progress はアイテム数の集計結果。
type Progress struct {
	Total     int
	Completed int
	Percent   int
}

// ItemInput はアイテム追加時の入力。
type ItemInput struct {
	Title string
	URL   string
	Type  model.ItemType
	Notes string
}

// ItemPatch はアイテムの部分更新。nilフィールドは変更しない。
type ItemPatch struct {
	Title *string
	URL   *string
	Type  *model.ItemType
	Notes *string
}

// Store は1つのDashboardStateを所有し、変更操作と集計を提供する。
// 変更は同期的で、直後の読み取りに反映される。
// 並行アクセスの排他は呼び出し側（sync.Orchestrator）が行う。
type Store struct {
	state *model.DashboardState
	now   func() time.Time
	newID func() string
}

// NewStore はStoreを生成する。stateがnilの場合は空の状態で開始する。
func NewStore(state *model.DashboardState) *Store {
	if state == nil {
		state = model.NewDashboardState()
	}
	return &Store{
		state: state,
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewID,
	}
}

// NewID はタイムスタンプとランダム値から構成される一意なIDを生成する（UUIDv7）。
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// State は現在の状態を返す。返り値を直接変更してはならない。
func (s *Store) State() *model.DashboardState {
	return s.state
}

// Snapshot は永続化用に状態のディープコピーを返す。
func (s *Store) Snapshot() *model.DashboardState {
	return s.state.Clone()
}

// Replace は状態全体を置き換える（インポート・ロード時）。
func (s *Store) Replace(state *model.DashboardState) {
	if state == nil {
		state = model.NewDashboardState()
	}
	if state.Categories == nil {
		state.Categories = []*model.Category{}
	}
	s.state = state
}

// Touch は最終更新日時を現在時刻にする。
func (s *Store) Touch() time.Time {
	s.state.LastUpdated = s.now()
	return s.state.LastUpdated
}

// EnsureDefaults はカテゴリが1件もない場合に既定カテゴリを投入する。
// 投入した場合はtrueを返す。
func (s *Store) EnsureDefaults() bool {
	if len(s.state.Categories) > 0 {
		return false
	}
	for _, d := range DefaultCategories {
		s.state.Categories = append(s.state.Categories, &model.Category{
			ID:    s.newID(),
			Name:  d.Name,
			Icon:  d.Icon,
			Color: d.Color,
			Items: []*model.Item{},
		})
	}
	return true
}

// Categories はカテゴリ一覧を返す。
func (s *Store) Categories() []*model.Category {
	return s.state.Categories
}

// Category は指定IDのカテゴリを返す。
func (s *Store) Category(id string) (*model.Category, error) {
	_, c := s.findCategory(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}
	return c, nil
}

// AddCategory はカテゴリを末尾に追加する。
func (s *Store) AddCategory(name, icon, color string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name: %w", ErrEmptyField)
	}
	c := &model.Category{
		ID:    s.newID(),
		Name:  name,
		Icon:  icon,
		Color: color,
		Items: []*model.Item{},
	}
	s.state.Categories = append(s.state.Categories, c)
	return c, nil
}

// RenameCategory はカテゴリ名を変更する。
func (s *Store) RenameCategory(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("category name: %w", ErrEmptyField)
	}
	c, err := s.Category(id)
	if err != nil {
		return err
	}
	c.Name = name
	return nil
}

// RemoveCategory はカテゴリを配下のアイテムごと削除する。
func (s *Store) RemoveCategory(id string) error {
	idx, _ := s.findCategory(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}
	s.state.Categories = append(s.state.Categories[:idx], s.state.Categories[idx+1:]...)
	return nil
}

// AddItem はカテゴリにアイテムを追加する。URLとタイトルは必須。
func (s *Store) AddItem(categoryID string, in ItemInput) (*model.Item, error) {
	if strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("item url: %w", ErrEmptyField)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("item title: %w", ErrEmptyField)
	}
	c, err := s.Category(categoryID)
	if err != nil {
		return nil, err
	}
	typ := in.Type
	if !typ.Valid() {
		typ = model.ItemTypeOther
	}
	it := &model.Item{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		URL:       strings.TrimSpace(in.URL),
		Type:      typ,
		Notes:     in.Notes,
		Completed: false,
		AddedAt:   s.now(),
	}
	c.Items = append(c.Items, it)
	return it, nil
}

// QuickAddItem はURLだけからアイテムを追加する。
// タイトルはURLから推定し、種類はホスト名から判定する。
func (s *Store) QuickAddItem(categoryID, rawURL string) (*model.Item, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("item url: %w", ErrEmptyField)
	}
	return s.AddItem(categoryID, ItemInput{
		Title: ExtractTitle(rawURL),
		URL:   rawURL,
		Type:  InferType(rawURL),
	})
}

// UpdateItem はアイテムを部分更新する。
func (s *Store) UpdateItem(categoryID, itemID string, patch ItemPatch) error {
	it, err := s.item(categoryID, itemID)
	if err != nil {
		return err
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return fmt.Errorf("item title: %w", ErrEmptyField)
		}
		it.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.URL != nil {
		if strings.TrimSpace(*patch.URL) == "" {
			return fmt.Errorf("item url: %w", ErrEmptyField)
		}
		it.URL = strings.TrimSpace(*patch.URL)
	}
	if patch.Type != nil {
		it.Type = *patch.Type
		if !it.Type.Valid() {
			it.Type = model.ItemTypeOther
		}
	}
	if patch.Notes != nil {
		it.Notes = *patch.Notes
	}
	return nil
}

// RemoveItem はアイテムを1件削除する。
func (s *Store) RemoveItem(categoryID, itemID string) error {
	c, err := s.Category(categoryID)
	if err != nil {
		return err
	}
	for i, it := range c.Items {
		if it.ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// ToggleItem は完了状態を反転する。
// 完了にした場合は completedAt を現在時刻に、未完了に戻した場合は除去する。
func (s *Store) ToggleItem(categoryID, itemID string) (*model.Item, error) {
	it, err := s.item(categoryID, itemID)
	if err != nil {
		return nil, err
	}
	it.Completed = !it.Completed
	if it.Completed {
		at := s.now()
		it.CompletedAt = &at
	} else {
		it.CompletedAt = nil
	}
	return it, nil
}

// FindItem は全カテゴリからアイテムを探す。
func (s *Store) FindItem(itemID string) (*model.Category, *model.Item) {
	for _, c := range s.state.Categories {
		for _, it := range c.Items {
			if it.ID == itemID {
				return c, it
			}
		}
	}
	return nil, nil
}

// ApplyTitle はアイテムがまだ存在する場合に限りタイトルを上書きする。
// 更新した場合はtrueを返す。
func (s *Store) ApplyTitle(itemID, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	_, it := s.FindItem(itemID)
	if it == nil {
		return false
	}
	it.Title = title
	return true
}

// Progress はカテゴリの進捗を返す。
func (s *Store) Progress(categoryID string) (Progress, error) {
	c, err := s.Category(categoryID)
	if err != nil {
		return Progress{}, err
	}
	return CategoryProgress(c), nil
}

// Overall は全カテゴリ合計の進捗を返す。
func (s *Store) Overall() Progress {
	var total, completed int
	for _, c := range s.state.Categories {
		p := CategoryProgress(c)
		total += p.Total
		completed += p.Completed
	}
	return newProgress(total, completed)
}

// CategoryProgress はカテゴリ単体の進捗を計算する。
func CategoryProgress(c *model.Category) Progress {
	completed := 0
	for _, it := range c.Items {
		if it.Completed {
			completed++
		}
	}
	return newProgress(len(c.Items), completed)
}

func newProgress(total, completed int) Progress {
	p := Progress{Total: total, Completed: completed}
	if total > 0 {
		p.Percent = int(math.Round(100 * float64(completed) / float64(total)))
	}
	return p
}

func (s *Store) findCategory(id string) (int, *model.Category) {
	for i, c := range s.state.Categories {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *Store) item(categoryID, itemID string) (*model.Item, error) {
	c, err := s.Category(categoryID)
	if err != nil {
		return nil, err
	}
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}
