package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 Base.DisableKeepAlives=false")
	}
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive，但 Base.DisableKeepAlives=true")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	for _, in := range []string{"http://[::1", "127.0.0.1"} {
		if _, err := NewClient(in); err == nil {
			t.Fatalf("期望错误，但得到 nil：%q", in)
		}
	}
}

func TestTransport_StatusIsNotRetriedAndUASet(t *testing.T) {
	var hits int32
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		ua.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望 503 原样返回，实际 %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("HTTP 状态不应重试，实际请求 %d 次", n)
	}
	if s, _ := ua.Load().(string); s == "" {
		t.Fatalf("期望设置 User-Agent")
	}
}

func TestTransport_RetriesNetworkErrors(t *testing.T) {
	var dials int32
	base := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			atomic.AddInt32(&dials, 1)
			return nil, errors.New("connection refused")
		},
	}
	c := &http.Client{Transport: &Transport{Base: base, ua: globalUA, RetryMax: 2}}

	if _, err := c.Get("http://subs.invalid/search.php"); err == nil {
		t.Fatalf("期望连接错误")
	}
	if n := atomic.LoadInt32(&dials); n != 3 {
		t.Fatalf("期望 1 次尝试 + 2 次重试，实际拨号 %d 次", n)
	}
}
