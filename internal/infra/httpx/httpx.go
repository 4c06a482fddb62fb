package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// NewClient 构造下载用的 HTTP client。
//
// 规则：
// - 不设置总超时（大文件下载可能很久；取消依赖 request context）
// - 重定向使用 net/http 默认策略（最多 10 次）
// - 不注入任何自定义 header，不重试
// - proxyURL 非空：所有请求走该代理；为空则沿用环境变量（HTTP_PROXY 等）
func NewClient(proxyURL string) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("http.DefaultTransport 不是 *http.Transport")
	}
	tr := base.Clone()

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy URL 缺少 scheme 或 host：" + proxyURL)
		}
		tr.Proxy = http.ProxyURL(u)
	}

	return &http.Client{Transport: tr}, nil
}
