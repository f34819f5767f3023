// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

// ErrDuplicate は一意制約違反（メールアドレスまたはユーザー名の重複）を示す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmailOrUsername はメールアドレスまたはユーザー名が登録済みかを返す。
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// CreateWithDashboard はユーザーと初期ダッシュボードを同一トランザクションで作成する。
	// 一意制約に違反した場合はErrDuplicateを返す。
	CreateWithDashboard(ctx context.Context, user *model.User, dashboard *model.Dashboard) error

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// DashboardRepository はダッシュボードの永続化インターフェース。
type DashboardRepository interface {
	// FindByUserID は指定ユーザーのダッシュボードを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Dashboard, error)

	// Upsert はカテゴリを保存し、存在しなければ作成する。
	// themeがnilの場合は既存のテーマを維持する（新規作成時はlight）。
	Upsert(ctx context.Context, userID string, categories []*model.Category, theme *model.Theme, at time.Time) (*model.Dashboard, error)

	// UpdateTheme はテーマを更新する。ダッシュボードが存在しない場合はfalseを返す。
	UpdateTheme(ctx context.Context, userID string, theme model.Theme, at time.Time) (bool, error)
}
