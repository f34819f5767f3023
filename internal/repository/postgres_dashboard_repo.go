package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

// PostgresDashboardRepo はカテゴリをJSONBで保持するダッシュボードリポジトリ。
type PostgresDashboardRepo struct {
	db *sql.DB
}

// NewPostgresDashboardRepo はPostgresDashboardRepoを生成する。
func NewPostgresDashboardRepo(db *sql.DB) *PostgresDashboardRepo {
	return &PostgresDashboardRepo{db: db}
}

const dashboardColumns = `user_id, categories, theme, settings_updated_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDashboard(row rowScanner) (*model.Dashboard, error) {
	var (
		d     model.Dashboard
		raw   []byte
		theme string
	)
	if err := row.Scan(&d.UserID, &raw, &theme, &d.Settings.LastUpdated, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	categories, err := decodeCategories(raw)
	if err != nil {
		return nil, err
	}
	d.Categories = categories
	d.Settings.Theme = model.Theme(theme)
	return &d, nil
}

// FindByUserID は指定ユーザーのダッシュボードを取得する。見つからない場合はnilを返す。
func (r *PostgresDashboardRepo) FindByUserID(ctx context.Context, userID string) (*model.Dashboard, error) {
	d, err := scanDashboard(r.db.QueryRowContext(ctx,
		`SELECT `+dashboardColumns+` FROM dashboards WHERE user_id = $1`,
		userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dashboard: %w", err)
	}
	return d, nil
}

// Upsert はカテゴリを保存し、存在しなければ作成する。
func (r *PostgresDashboardRepo) Upsert(ctx context.Context, userID string, categories []*model.Category, theme *model.Theme, at time.Time) (*model.Dashboard, error) {
	raw, err := encodeCategories(categories)
	if err != nil {
		return nil, err
	}

	var themeArg sql.NullString
	if theme != nil {
		themeArg = sql.NullString{String: string(*theme), Valid: true}
	}

	d, err := scanDashboard(r.db.QueryRowContext(ctx,
		`INSERT INTO dashboards (user_id, categories, theme, settings_updated_at, created_at, updated_at)
		 VALUES ($1, $2, COALESCE($3::varchar, 'light'), $4, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
			categories = EXCLUDED.categories,
			theme = COALESCE($3::varchar, dashboards.theme),
			settings_updated_at = EXCLUDED.settings_updated_at,
			updated_at = EXCLUDED.updated_at
		 RETURNING `+dashboardColumns,
		userID, raw, themeArg, at,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert dashboard: %w", err)
	}
	return d, nil
}

// UpdateTheme はテーマを更新する。ダッシュボードが存在しない場合はfalseを返す。
func (r *PostgresDashboardRepo) UpdateTheme(ctx context.Context, userID string, theme model.Theme, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dashboards SET theme = $2, settings_updated_at = $3, updated_at = $3 WHERE user_id = $1`,
		userID, string(theme), at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update theme: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// encodeCategories はカテゴリをJSONB列用にエンコードする。nilは空配列とする。
func encodeCategories(categories []*model.Category) ([]byte, error) {
	if categories == nil {
		categories = []*model.Category{}
	}
	b, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}
	return b, nil
}

func decodeCategories(raw []byte) ([]*model.Category, error) {
	categories := []*model.Category{}
	if len(raw) == 0 {
		return categories, nil
	}
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	for _, c := range categories {
		if c != nil && c.Items == nil {
			c.Items = []*model.Item{}
		}
	}
	return categories, nil
}

// compile-time interface check
var _ DashboardRepository = (*PostgresDashboardRepo)(nil)
