// Package github はGitHubのcontents APIを介して、リポジトリ上の1ファイルに
// ダッシュボード状態を同期するリモート永続化アダプタを提供する。
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

const (
	// DefaultAPIURL はGitHub REST APIのベースURL。
	DefaultAPIURL = "https://api.github.com"
	// DefaultBranch は書き込み先の既定ブランチ。
	DefaultBranch = "main"
	// DefaultPath はデータファイルの既定パス。
	DefaultPath = "dashboard-data.json"

	maxResponseSize = 10 * 1024 * 1024
)

// ErrNotConfigured はトークンが設定されていないことを示す。
var ErrNotConfigured = errors.New("github sync is not configured")

// Config はGitHub同期の設定。
type Config struct {
	Owner  string
	Repo   string
	Branch string
	Path   string
	Token  string
	APIURL string
}

// Client はcontents APIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
	now        func() time.Time
}

// NewClient はClientを生成する。未指定の設定値は既定値で補う。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if config.Branch == "" {
		config.Branch = DefaultBranch
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// Configured はトークンが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.config.Token != ""
}

// contentResponse はGET /contents のレスポンスのうち使用するフィールド。
type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// putRequest はPUT /contents のリクエストボディ。
// 既存ファイルを更新する場合のみSHAを指定する。
type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Load はリモートのデータファイルを読み込む。
// トークン未設定、404、認証エラー、通信エラー、内容の破損はいずれもnil（存在しない）として扱い、
// 呼び出し元にエラーを返さない。
func (c *Client) Load(ctx context.Context) (*model.DashboardState, error) {
	if !c.Configured() {
		return nil, nil
	}

	file, err := c.getFile(ctx)
	if err != nil {
		c.logger.Warn("failed to load dashboard from github",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if file == nil {
		return nil, nil
	}

	raw, err := decodeContent(file.Content)
	if err != nil {
		c.logger.Warn("github dashboard content is not valid base64",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	state, err := model.DecodeDashboardState(raw)
	if err != nil {
		c.logger.Warn("github dashboard data is malformed, ignoring",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return state, nil
}

// Save はダッシュボード状態をリモートに書き込む。
// 既存ファイルがあればそのSHAを付けて上書きし、なければ新規作成する。
func (c *Client) Save(ctx context.Context, state *model.DashboardState) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	// SHA取得の失敗は新規作成として扱う。SHA不一致ならPUTが失敗する。
	var sha string
	if file, err := c.getFile(ctx); err == nil && file != nil {
		sha = file.SHA
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dashboard state: %w", err)
	}

	body, err := json.Marshal(putRequest{
		Message: "Update dashboard data - " + c.now().UTC().Format(time.RFC3339),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  c.config.Branch,
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("github API error: %d - %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	c.logger.Info("dashboard saved to github",
		slog.String("repo", c.config.Owner+"/"+c.config.Repo),
		slog.String("path", c.config.Path),
	)
	return nil
}

// TestConnection は接続を確認する。
// ファイルが存在すればその内容を返し、存在しなければinitialで新規作成してnilを返す。
func (c *Client) TestConnection(ctx context.Context, initial *model.DashboardState) (*model.DashboardState, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	file, err := c.getFile(ctx)
	if err != nil {
		return nil, err
	}
	if file != nil {
		raw, err := decodeContent(file.Content)
		if err != nil {
			return nil, fmt.Errorf("invalid content encoding: %w", err)
		}
		return model.DecodeDashboardState(raw)
	}
	if err := c.Save(ctx, initial); err != nil {
		return nil, err
	}
	return nil, nil
}

// getFile はデータファイルを取得する。404の場合はnil, nilを返す。
func (c *Client) getFile(ctx context.Context) (*contentResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("ref", c.config.Branch)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API error: %d - %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	var file contentResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode github response: %w", err)
	}
	return &file, nil
}

func (c *Client) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.config.APIURL,
		url.PathEscape(c.config.Owner),
		url.PathEscape(c.config.Repo),
		escapePath(c.config.Path),
	)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create github request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.config.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "devdash/1.0")
	return req, nil
}

// decodeContent はcontents APIのbase64（改行入り）をデコードする。
func decodeContent(content string) ([]byte, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	return base64.StdEncoding.DecodeString(cleaned)
}

// escapePath はパスの各セグメントをエスケープする。区切りの "/" は保持する。
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64*1024)).Decode(&body); err != nil || body.Message == "" {
		return "unknown error"
	}
	return body.Message
}
