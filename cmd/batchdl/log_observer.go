package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/John-Robertt/batchdl/internal/app/run"
	"github.com/John-Robertt/batchdl/internal/config"
	"github.com/John-Robertt/batchdl/internal/domain"
)

var _ run.Observer = (*logObserver)(nil)

// logObserver 把 run 事件渲染成日志行（stderr）。
//
// - 每个下载输出 "Downloading" / "Downloaded" 两行
// - 文件系统失败输出 warn；请求失败只在 debug 下可见
// - 跳过的条目不输出
//
// *log.Logger 自带锁，所以这里不再额外加锁。
type logObserver struct {
	logger *log.Logger
}

func newLogObserver(logger *log.Logger) *logObserver {
	return &logObserver{logger: logger}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.logger.Debug("配置（生效）",
		"input", eff.InputFile,
		"output", eff.OutputDir,
		"concurrency", eff.Concurrency,
		"proxy", formatProxy(eff.ProxyURL),
		"name_from", eff.NameFrom,
		"strict_status", eff.StrictStatus,
		"force_html", eff.ForceHTML,
		"config", onOff(eff.ConfigFile != ""),
	)
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "read":
		o.logger.Debug("读取输入", "urls", intField(fields, "urls"), "took", formatShortDuration(dur))
	case "plan":
		o.logger.Debug("检查已存在文件",
			"tasks", intField(fields, "tasks"),
			"skipped", intField(fields, "skipped"),
			"failed", intField(fields, "failed"),
			"took", formatShortDuration(dur),
		)
	case "exec":
		o.logger.Debug("下载结束", "workers", intField(fields, "workers"), "tasks", intField(fields, "tasks"), "took", formatShortDuration(dur))
	default:
		o.logger.Debug(name, "took", formatShortDuration(dur))
	}
}

func (o *logObserver) OnDownloading(t domain.Task) {
	o.logger.Infof("Downloading : '%s' - '%s'", t.URL, t.PreName)
}

func (o *logObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	switch res.Status {
	case domain.StatusDownloaded:
		o.logger.Infof("Downloaded : '%s' - '%s'", res.URL, res.FinalName)
		o.logger.Debug("progress", "done", fmt.Sprintf("%d/%d", idx, total), "bytes", res.Bytes, "status", res.HTTPStatus, "took", formatShortDuration(dur))
	case domain.StatusFailed:
		switch res.ErrorCode {
		case domain.ErrCodeFetchFailed, domain.ErrCodeCanceled:
			o.logger.Debug("request failed", "url", res.URL, "code", res.ErrorCode, "error", truncate(res.ErrorMsg, 200))
		default:
			o.logger.Warn("download failed", "url", res.URL, "file", res.FinalName, "code", res.ErrorCode, "error", truncate(res.ErrorMsg, 200))
		}
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// formatProxy 只展示 scheme/host，不输出认证信息。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (invalid)"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeCut(s, max)]
	}
	return s[:runeCut(s, max-3)] + "..."
}

// runeCut 返回不超过 n 且落在字符边界上的字节下标。
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
