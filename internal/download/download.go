package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/John-Robertt/batchdl/internal/domain"
	"github.com/John-Robertt/batchdl/internal/infra/fsx"
	"github.com/John-Robertt/batchdl/internal/naming"
)

const (
	// NameFromResponse 用最终响应 URL 的最后一段作为文件名（默认）。
	NameFromResponse = "response"
	// NameFromRequest 始终使用请求前的猜测文件名（与跳过判断使用同一依据）。
	NameFromRequest = "request"
)

// Options 控制单条下载的行为；零值即默认行为。
type Options struct {
	NameFrom     string
	StrictStatus bool
}

// Fetch 下载一个 Task 并写入 outDir，返回该条目的结果。
//
// 失败只影响当前条目：
// - 请求失败（连接/DNS/TLS/URL 无效）：fetch_failed，不写文件
// - StrictStatus 且非 2xx：http_status，不写文件
// - 创建/写入文件或读取 body 失败：io_failed / target_conflict，残缺文件保留
func Fetch(ctx context.Context, c *http.Client, outDir string, t domain.Task, opt Options) domain.ItemResult {
	logger := log.FromContext(ctx)

	res := domain.ItemResult{
		Index:   t.Index,
		URL:     t.URL,
		PreName: t.PreName,
		Status:  domain.StatusFailed, // 成功时覆盖
	}

	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fail(res, domain.ErrCodeFetchFailed, &Error{Code: domain.ErrCodeFetchFailed, URL: t.URL, Err: err})
	}

	resp, err := c.Do(req)
	if err != nil {
		code := domain.ErrCodeFetchFailed
		if errors.Is(err, context.Canceled) {
			code = domain.ErrCodeCanceled
		}
		logger.Debug("request failed", "url", t.URL, "error", err)
		return fail(res, code, &Error{Code: code, URL: t.URL, Err: err})
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &HTTPStatusError{URL: t.URL, StatusCode: resp.StatusCode, Status: resp.Status}
		if opt.StrictStatus {
			return fail(res, domain.ErrCodeHTTPStatus, se)
		}
		logger.Warn("non-2xx response body will be saved", "url", t.URL, "status", resp.StatusCode)
	}

	name := FinalName(resp, t.PreName, opt.NameFrom)
	res.FinalName = name
	if !naming.Valid(name) {
		return fail(res, domain.ErrCodeEmptyFilename, fmt.Errorf("无法为 %q 确定文件名", t.URL))
	}

	f, err := fsx.CreateTruncate(outDir, name)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		return fail(res, code, &Error{Code: code, URL: t.URL, Err: err})
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	res.Bytes = n
	if copyErr != nil {
		return fail(res, domain.ErrCodeIOFailed, &Error{Code: domain.ErrCodeIOFailed, URL: t.URL, Err: fmt.Errorf("写入 %q 失败：%w", name, copyErr)})
	}
	if closeErr != nil {
		return fail(res, domain.ErrCodeIOFailed, &Error{Code: domain.ErrCodeIOFailed, URL: t.URL, Err: fmt.Errorf("关闭 %q 失败：%w", name, closeErr)})
	}

	logger.Debug("saved", "url", t.URL, "file", name, "bytes", n, "status", resp.StatusCode)
	res.Status = domain.StatusDownloaded
	return res
}

// FinalName 根据命名依据决定最终写盘的文件名。
// resp.Request 是跟随重定向之后的最后一个请求，其 URL 即最终响应 URL。
func FinalName(resp *http.Response, pre, nameFrom string) string {
	if nameFrom == NameFromRequest || resp == nil || resp.Request == nil {
		return pre
	}
	return naming.Resolve(resp.Request.URL, pre)
}

func fail(res domain.ItemResult, code string, err error) domain.ItemResult {
	res.Status = domain.StatusFailed
	res.ErrorCode = code
	if err != nil {
		res.ErrorMsg = err.Error()
	}
	return res
}
