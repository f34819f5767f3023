// Package apiclient はdevdash-apiのREST APIを介してダッシュボード状態を
// 同期するリモート永続化アダプタを提供する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrNotAuthenticated はトークンが未設定であることを示す。
	ErrNotAuthenticated = errors.New("api sync requires login")
	// ErrInvalidCredentials はログイン時の認証失敗を示す。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User はログインレスポンスに含まれるユーザー情報。
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Client はdevdash-apiクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	token      string
}

// NewClient はClientを生成する。tokenは空でもよく、その場合Load/Saveは通信しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Authenticated はトークンが設定されているかを返す。
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Register はアカウントを作成し、ユーザーIDを返す。
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var out struct {
		UserID string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/register", body, false, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login はメールアドレスとパスワードでログインし、トークンを保持したうえで結果を返す。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/login", body, false, http.StatusOK, &out)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Load はサーバー上のダッシュボードを取得する。
// 未ログイン、404、認証エラー、通信エラー、内容の破損はnil（存在しない）として扱う。
func (c *Client) Load(ctx context.Context) (*model.DashboardState, error) {
	if !c.Authenticated() {
		return nil, nil
	}

	var doc model.Dashboard
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, true, http.StatusOK, &doc)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			c.logger.Info("remote dashboard not found")
			return nil, nil
		}
		c.logger.Warn("remote dashboard load failed", "error", err)
		return nil, nil
	}

	state, err := doc.State()
	if err != nil {
		c.logger.Warn("remote dashboard is malformed, ignoring", "error", err)
		return nil, nil
	}
	return state, nil
}

// Save はダッシュボードのカテゴリをサーバーへ保存する（upsert）。
func (c *Client) Save(ctx context.Context, state *model.DashboardState) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	body := model.DashboardUpdate{Categories: state.Categories}
	return c.do(ctx, http.MethodPut, "/api/dashboard", body, true, http.StatusOK, nil)
}

// UpdateTheme はサーバー側のテーマ設定を更新する。
func (c *Client) UpdateTheme(ctx context.Context, theme model.Theme) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	body := model.SettingsUpdate{Theme: theme}
	return c.do(ctx, http.MethodPut, "/api/settings", body, true, http.StatusOK, nil)
}

// Health はサーバーのヘルスチェック結果を返す。
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, false, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusError は期待しないHTTPステータスが返ったことを示す。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in any, auth bool, want int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode != want {
		return &StatusError{StatusCode: resp.StatusCode, Message: readErrorMessage(limited)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// readErrorMessage はエラーレスポンスからメッセージを取り出す。
func readErrorMessage(r io.Reader) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
