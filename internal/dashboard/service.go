package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/devdash/internal/model"
	"github.com/hitoshi/devdash/internal/repository"
)

// Service はバックエンドに保存されたユーザーごとのダッシュボードを扱う。
type Service struct {
	repo repository.DashboardRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.DashboardRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get はユーザーのダッシュボードを返す。存在しない場合はDASHBOARD_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Dashboard, error) {
	d, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.NewDashboardNotFoundError()
	}
	return d, nil
}

// Save はカテゴリ（と指定があればテーマ）を保存する。存在しない場合は作成する。
// settings.lastUpdatedは保存時刻で上書きする。
func (s *Service) Save(ctx context.Context, userID string, update model.DashboardUpdate) (*model.Dashboard, error) {
	if update.Categories == nil {
		return nil, model.NewValidationError("categories is required")
	}

	state := &model.DashboardState{Categories: update.Categories}
	if err := state.Normalize(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	var theme *model.Theme
	if update.Settings != nil && update.Settings.Theme != "" {
		if !update.Settings.Theme.Valid() {
			return nil, model.NewInvalidThemeError(string(update.Settings.Theme))
		}
		t := update.Settings.Theme
		theme = &t
	}

	d, err := s.repo.Upsert(ctx, userID, state.Categories, theme, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to save dashboard: %w", err)
	}
	return d, nil
}

// UpdateTheme はテーマを更新する。ダッシュボードが存在しない場合も成功として扱う。
func (s *Service) UpdateTheme(ctx context.Context, userID string, theme model.Theme) (model.Theme, error) {
	if !theme.Valid() {
		return "", model.NewInvalidThemeError(string(theme))
	}
	if _, err := s.repo.UpdateTheme(ctx, userID, theme, s.now()); err != nil {
		return "", fmt.Errorf("failed to update theme: %w", err)
	}
	return theme, nil
}
