package security

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// DefaultProbeTimeout は到達確認のHEADリクエストのタイムアウト。
const DefaultProbeTimeout = 3 * time.Second

// allowedSchemes は外部URLとして受け付けるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はValidateURLで拒否するネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
// DNS解決後のIPアドレスはsafeurlのクライアントがDialer側で検証する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIP 169.254.169.254 を含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// URLGuard は投稿フォームで受け取る外部URLを検証する。
type URLGuard struct {
	client  *http.Client
	timeout time.Duration
}

// NewURLGuard はSSRF防止付きのHTTPクライアントを持つURLGuardを生成する。
// safeurlのDialer検証により、プライベートIP、ループバック、リンクローカル、
// メタデータIPへの接続はDNS解決後もブロックされる。
func NewURLGuard(probeTimeout time.Duration) *URLGuard {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(probeTimeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &URLGuard{
		client:  safeurl.Client(config).Client,
		timeout: probeTimeout,
	}
}

// ValidateURL はURLが絶対URLのhttp(s)であり、ブロック対象のホストを指していないことを
// DNS解決なしで静的に検証する。
func (g *URLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !parsed.IsAbs() {
		return fmt.Errorf("URL is not absolute: %s", rawURL)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// Probe はURLへHEADリクエストを1回送り、到達できたかを返す。
// 4xx/5xxの応答は到達不可とみなすが、HEAD非対応の405は到達可能として扱う。
// ctxが既にキャンセルされている場合など、確認自体を実施できなかった場合はnilを返す。
func (g *URLGuard) Probe(ctx context.Context, rawURL string) *bool {
	if ctx.Err() != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "6IX-LinkCheck/1.0")

	reachable := false
	resp, err := g.client.Do(req)
	if err == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		reachable = resp.StatusCode < 400 || resp.StatusCode == http.StatusMethodNotAllowed
	}
	return &reachable
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
