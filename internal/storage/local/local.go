// Package local は端末ローカルのキーバリューストア（SQLiteファイル）に
// ダッシュボード状態を永続化するアダプタを提供する。
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/devdash/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// StateKey はダッシュボード状態を保存するキー。
	StateKey = "personalDevelopmentDashboard"
	// ThemeKey は表示テーマを保存するキー。
	ThemeKey = "dashboard-theme"
	// TokenKey はバックエンドのBearerトークンを保存するキー。
	TokenKey = "api-token"

	dbFileName = "devdash.db"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// Store はSQLiteのkvテーブルを使ったローカル永続化アダプタ。
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open はdataDir配下のSQLiteファイルを開き、スキーマを作成する。
// dataDirが存在しない場合は作成する。
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// 単一ライター
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local store schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Get は指定キーの値を返す。存在しない場合は空文字とfalseを返す。
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set は指定キーに値を保存する。
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。存在しない場合も成功とする。
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Load は保存済みのダッシュボード状態を返す。
// 未保存の場合はnilを返す。JSONが壊れている場合はログに記録してnilを返す。
func (s *Store) Load(ctx context.Context) (*model.DashboardState, error) {
	raw, ok, err := s.Get(ctx, StateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	state, err := model.DecodeDashboardState([]byte(raw))
	if err != nil {
		s.logger.Error("local dashboard data is malformed, ignoring",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return state, nil
}

// Save はダッシュボード状態全体をJSONとして保存する。
func (s *Store) Save(ctx context.Context, state *model.DashboardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard state: %w", err)
	}
	return s.Set(ctx, StateKey, string(data))
}
