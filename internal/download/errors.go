package download

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示服务端返回了非 2xx 的状态码。
// 只有开启 StrictStatus 时才会作为失败返回；默认情况下 body 照常写盘。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if s := strings.TrimSpace(e.Status); s != "" {
		return fmt.Sprintf("HTTP %s：%s", s, e.URL)
	}
	return fmt.Sprintf("HTTP %d：%s", e.StatusCode, e.URL)
}

// Error 是单条下载的可追溯错误，Code 即 report 中的 error_code。
type Error struct {
	Code string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Code, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
