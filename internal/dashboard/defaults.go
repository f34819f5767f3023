package dashboard

import "github.com/hitoshi/devdash/internal/model"

// CategoryTemplate は既定カテゴリの定義。
type CategoryTemplate struct {
	Name  string
	Icon  string
	Color string
}

// DefaultCategories は初回利用時に投入するカテゴリ。
var DefaultCategories = []CategoryTemplate{
	{Name: "Personal Finance & Investments", Icon: "fas fa-chart-line", Color: "green"},
	{Name: "Real Estate", Icon: "fas fa-home", Color: "blue"},
	{Name: "Fitness & Health", Icon: "fas fa-dumbbell", Color: "orange"},
	{Name: "Product Management", Icon: "fas fa-tasks", Color: "purple"},
	{Name: "Coding & Development", Icon: "fas fa-code", Color: "indigo"},
	{Name: "AI & Machine Learning", Icon: "fas fa-brain", Color: "teal"},
	{Name: "UX/UI Design", Icon: "fas fa-palette", Color: "pink"},
	{Name: "AI Tools & Cursor", Icon: "fas fa-robot", Color: "red"},
}

// AccountCategoryTemplate はアカウント作成時にサーバー側で投入するカテゴリの定義。
// IDは固定値を用いる。
type AccountCategoryTemplate struct {
	ID    string
	Name  string
	Icon  string
	Color string
}

// AccountDefaultCategories は新規アカウントの初期ダッシュボードに含めるカテゴリ。
var AccountDefaultCategories = []AccountCategoryTemplate{
	{ID: "finance", Name: "Personal Finance", Icon: "fas fa-chart-line", Color: "blue"},
	{ID: "real-estate", Name: "Real Estate", Icon: "fas fa-home", Color: "green"},
	{ID: "fitness", Name: "Fitness", Icon: "fas fa-dumbbell", Color: "purple"},
	{ID: "product-management", Name: "Product Management", Icon: "fas fa-tasks", Color: "orange"},
	{ID: "coding", Name: "Coding", Icon: "fas fa-code", Color: "red"},
	{ID: "ai-ml", Name: "AI/ML", Icon: "fas fa-brain", Color: "teal"},
	{ID: "ux-ui", Name: "UX/UI Design", Icon: "fas fa-palette", Color: "pink"},
	{ID: "learning", Name: "Learning", Icon: "fas fa-graduation-cap", Color: "indigo"},
}

// NewAccountCategories はAccountDefaultCategoriesから空のカテゴリ一覧を生成する。
func NewAccountCategories() []*model.Category {
	out := make([]*model.Category, 0, len(AccountDefaultCategories))
	for _, t := range AccountDefaultCategories {
		out = append(out, &model.Category{
			ID:    t.ID,
			Name:  t.Name,
			Icon:  t.Icon,
			Color: t.Color,
			Items: []*model.Item{},
		})
	}
	return out
}
