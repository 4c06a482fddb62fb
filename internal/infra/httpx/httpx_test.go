package httpx

import (
	"net/http"
	"testing"
)

func TestNewClient_NoProxyUsesEnvironment(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != 0 {
		t.Fatalf("不应设置总超时，实际 %v", c.Timeout)
	}
	if c.CheckRedirect != nil {
		t.Fatalf("应使用默认重定向策略")
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("期望 *http.Transport，实际 %T", c.Transport)
	}
	if tr.Proxy == nil {
		t.Fatalf("未指定代理时应保留 ProxyFromEnvironment")
	}
}

func TestNewClient_Proxy(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/a.txt", nil)
	u, err := tr.Proxy(req)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if u == nil || u.Host != "127.0.0.1:8080" {
		t.Fatalf("期望走代理 127.0.0.1:8080，实际 %v", u)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	for _, raw := range []string{"http://[::1", "127.0.0.1"} {
		if _, err := NewClient(raw); err == nil {
			t.Fatalf("期望 %q 报错，但得到 nil", raw)
		}
	}
}

func TestNewClient_DoesNotShareDefaultTransport(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Transport == http.DefaultTransport {
		t.Fatalf("不应修改/复用 http.DefaultTransport")
	}
}
