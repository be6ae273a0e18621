package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
)

// Transport 固化“UA 池 + 代理 + 有界重试”策略。
//
// 约束：
// - 只重试网络层错误（连接失败、超时等）；任何 HTTP 响应（含 4xx/5xx）原样返回，不重试
// - 只重试可重放的请求：GET/HEAD 且无 body
// - ctx 已取消时立即停止
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax 是首次尝试之外的最大重试次数。
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	retries := t.RetryMax
	if retries < 0 || !replayable(req) {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.Base.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func replayable(req *http.Request) bool {
	return (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
}

// NewClient 构造站点抓取用的 HTTP client（搜索页与字幕包共用）。
//
// 规则：
// - proxyURL 非空：必须走代理，且每请求新连接
// - 每个请求随机 UA
// - 网络错误有界重试 + 总超时
//
// 每个 provider.Session 持有自己的 client，不跨 worker 共享。
func NewClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}

	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy.url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{Base: base, ua: globalUA, RetryMax: defaultRetryMax},
		Timeout:   DefaultTimeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
