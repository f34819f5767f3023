// Package title は登録されたURLのページタイトルをバックグラウンドで取得する。
package title

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/devdash/internal/security"
)

// maxPageSize はタイトル取得時に読み込むレスポンスボディの上限（1MB）。
const maxPageSize = 1 << 20

// DefaultTimeout はタイトル取得1回あたりのタイムアウト。
const DefaultTimeout = 3 * time.Second

// userAgent はタイトル取得リクエストのUser-Agent。
const userAgent = "devdash/1.0 (+title-resolver)"

// siteSuffixes はページタイトル末尾から取り除くサイト名。
var siteSuffixes = []string{
	" - YouTube",
	" - Medium",
	" - Dev.to",
	" - Stack Overflow",
	" - GitHub",
}

// ErrNoTitle はページに<title>が存在しない、または空であることを示す。
var ErrNoTitle = errors.New("page has no title")

// Kind はタイトル取得の結果種別。
type Kind int

const (
	Success Kind = iota + 1
	Failure
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result はタイトル取得の結果。Titleが意味を持つのはKindがSuccessの場合のみ。
type Result struct {
	Kind  Kind
	Title string
	Err   error
}

// URLValidator はアクセス前のURL静的検証。
type URLValidator interface {
	Validate(rawURL string) error
}

// Resolver はURLを取得して<title>を抽出する。
type Resolver struct {
	client    *http.Client
	guard     URLValidator
	sanitizer *security.TextSanitizer
	logger    *slog.Logger
}

// NewResolver はResolverを生成する。
// clientがnilの場合はguardが生成するSSRF対策済みクライアントを使う。
func NewResolver(client *http.Client, guard URLValidator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = security.NewURLGuard().Client(DefaultTimeout)
	}
	return &Resolver{
		client:    client,
		guard:     guard,
		sanitizer: security.NewTextSanitizer(),
		logger:    logger,
	}
}

// NewDefaultResolver はSSRF対策済みのクライアントとURL検証を組み込んだResolverを生成する。
func NewDefaultResolver(timeout time.Duration, logger *slog.Logger) *Resolver {
	guard := security.NewURLGuard()
	return NewResolver(guard.Client(timeout), guard, logger)
}

// Resolve はrawURLのページタイトルを取得する。
// timeoutを超えた場合はTimeout、それ以外の失敗はFailureを返す。
func (r *Resolver) Resolve(ctx context.Context, rawURL string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := r.resolve(ctx, rawURL)
	if res.Kind == Failure && (errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(res.Err)) {
		res.Kind = Timeout
	}
	if res.Kind != Success {
		r.logger.Debug("title fetch did not succeed",
			"url", rawURL,
			"kind", res.Kind.String(),
			"error", res.Err,
		)
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, rawURL string) Result {
	if r.guard != nil {
		if err := r.guard.Validate(rawURL); err != nil {
			return Result{Kind: Failure, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Kind: Failure, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{Kind: Failure, Err: fmt.Errorf("fetch page: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Kind: Failure, Err: fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)}
	}

	raw, err := ExtractTitle(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return Result{Kind: Failure, Err: err}
	}

	t := r.clean(raw)
	if t == "" {
		return Result{Kind: Failure, Err: ErrNoTitle}
	}
	return Result{Kind: Success, Title: t}
}

// clean はタグ除去と空白の正規化を行い、既知のサイト名サフィックスを取り除く。
func (r *Resolver) clean(raw string) string {
	t := r.sanitizer.SanitizeText(raw)
	for _, suffix := range siteSuffixes {
		if strings.HasSuffix(t, suffix) {
			t = strings.TrimSpace(strings.TrimSuffix(t, suffix))
			break
		}
	}
	return t
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ExtractTitle はHTMLストリームから最初の<title>要素のテキストを返す。
// <title>が見つからない場合はErrNoTitleを返す。
func ExtractTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse html: %w", err)
			}
			if inTitle && b.Len() > 0 {
				return b.String(), nil
			}
			return "", ErrNoTitle
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
			// <body>以降に<title>は現れない前提で打ち切る
			if string(name) == "body" && !inTitle {
				return "", ErrNoTitle
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" && inTitle {
				return b.String(), nil
			}
		}
	}
}
