// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemType は学習リソースの種類を表す。
type ItemType string

const (
	ItemTypeYouTube ItemType = "youtube"
	ItemTypeCourse  ItemType = "course"
	ItemTypeBook    ItemType = "book"
	ItemTypeWebsite ItemType = "website"
	ItemTypeOther   ItemType = "other"
)

// Valid は定義済みの種類かどうかを返す。
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeYouTube, ItemTypeCourse, ItemTypeBook, ItemTypeWebsite, ItemTypeOther:
		return true
	}
	return false
}

// Item は1件の学習リソース（URL）と完了状態を表す。
// CompletedAt は Completed が true の場合にのみ設定される。
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Type        ItemType   `json:"type"`
	Notes       string     `json:"notes"`
	Completed   bool       `json:"completed"`
	AddedAt     time.Time  `json:"addedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Category は学習リソースをまとめるカテゴリ。
type Category struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Icon  string  `json:"icon"`
	Color string  `json:"color"`
	Items []*Item `json:"items"`
}

// DashboardState は永続化されるダッシュボード全体のルート集約。
type DashboardState struct {
	Categories  []*Category `json:"categories"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// NewDashboardState は空のDashboardStateを生成する。
func NewDashboardState() *DashboardState {
	return &DashboardState{
		Categories:  []*Category{},
		LastUpdated: time.Now().UTC(),
	}
}

// DecodeDashboardState はJSONをDashboardStateにデコードし、形状を検証する。
// 検証ルールは Normalize を参照。
func DecodeDashboardState(data []byte) (*DashboardState, error) {
	var state DashboardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard state: %w", err)
	}
	if err := state.Normalize(); err != nil {
		return nil, err
	}
	return &state, nil
}

// Normalize はデコード後の状態を検証・補正する。
//   - IDが空のカテゴリ・アイテムはエラー
//   - 未知のtypeは other に補正
//   - completed=false の completedAt は除去、completed=true で欠落していれば addedAt で補完
func (s *DashboardState) Normalize() error {
	if s.Categories == nil {
		s.Categories = []*Category{}
	}
	for i, c := range s.Categories {
		if c == nil {
			return fmt.Errorf("invalid dashboard state: category[%d] is null", i)
		}
		if err := c.Normalize(); err != nil {
			return fmt.Errorf("invalid dashboard state: category[%d]: %w", i, err)
		}
	}
	return nil
}

// Normalize はカテゴリとその配下のアイテムを検証・補正する。
func (c *Category) Normalize() error {
	if c.ID == "" {
		return fmt.Errorf("missing id")
	}
	if c.Items == nil {
		c.Items = []*Item{}
	}
	for j, it := range c.Items {
		if it == nil {
			return fmt.Errorf("item[%d] is null", j)
		}
		if it.ID == "" {
			return fmt.Errorf("item[%d]: missing id", j)
		}
		if !it.Type.Valid() {
			it.Type = ItemTypeOther
		}
		if !it.Completed {
			it.CompletedAt = nil
		} else if it.CompletedAt == nil {
			at := it.AddedAt
			it.CompletedAt = &at
		}
	}
	return nil
}

// Clone はDashboardStateのディープコピーを返す。
func (s *DashboardState) Clone() *DashboardState {
	out := &DashboardState{
		Categories:  make([]*Category, len(s.Categories)),
		LastUpdated: s.LastUpdated,
	}
	for i, c := range s.Categories {
		out.Categories[i] = c.Clone()
	}
	return out
}

// Clone はCategoryのディープコピーを返す。
func (c *Category) Clone() *Category {
	cc := *c
	cc.Items = make([]*Item, len(c.Items))
	for j, it := range c.Items {
		ic := *it
		if it.CompletedAt != nil {
			at := *it.CompletedAt
			ic.CompletedAt = &at
		}
		cc.Items[j] = &ic
	}
	return &cc
}

// Theme は表示テーマ。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid は定義済みのテーマかどうかを返す。
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Settings はサーバー側で保持するユーザー設定。
type Settings struct {
	Theme       Theme     `json:"theme"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Dashboard はバックエンドに保存されるユーザーごとのダッシュボード行。
// JSON表現はAPIのレスポンスボディとしてそのまま使用する。
type Dashboard struct {
	UserID     string      `json:"userId"`
	Categories []*Category `json:"categories"`
	Settings   Settings    `json:"settings"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// State はサーバー側のダッシュボードをクライアントの状態に変換する。
// lastUpdatedにはsettings.lastUpdatedを用いる。
func (d *Dashboard) State() (*DashboardState, error) {
	s := &DashboardState{
		Categories:  d.Categories,
		LastUpdated: d.Settings.LastUpdated,
	}
	if s.Categories == nil {
		s.Categories = []*Category{}
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// DashboardUpdate はPUT /api/dashboard のリクエストボディ。
type DashboardUpdate struct {
	Categories []*Category     `json:"categories"`
	Settings   *SettingsUpdate `json:"settings,omitempty"`
}

// SettingsUpdate は設定の更新内容。
type SettingsUpdate struct {
	Theme Theme `json:"theme"`
}
