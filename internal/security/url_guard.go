package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL はURLがアクセス禁止先を指していることを示す。
var ErrBlockedURL = errors.New("blocked url")

// blockedPrefixes はユーザー入力URLからのアクセスを禁止するネットワーク範囲。
// DNS解決後のIPはsafeurlのDialer側で検証される。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// URLGuard はユーザーが登録したURLへアクセスする際のSSRF対策を提供する。
// タイトルの自動取得で使用する。
type URLGuard struct{}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{}
}

// Client はsafeurlでラップしたHTTPクライアントを返す。
// プライベート・ループバック・リンクローカル宛ての接続はDialer段階で拒否される。
func (g *URLGuard) Client(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// Validate はDNS解決を伴わない静的検証を行う。
// http/https以外のスキーム、空ホスト、localhost、禁止範囲のIPリテラルを拒否する。
func (g *URLGuard) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrBlockedURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedURL, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("%w: %s", ErrBlockedURL, addr)
			}
		}
	}
	return nil
}
