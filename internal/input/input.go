package input

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxLineBytes 是单行上限；超出视为读取错误（URL 不应该这么长）。
const maxLineBytes = 1 << 20

// ReadLines 读取 URL 列表文件（每行一个 URL）。
//
// 规则：
// - 打开失败/任意一行读取失败：整体失败（没有部分成功模式）
// - 行尾 "\n" 与 "\r\n" 都会被去掉
// - 每行去掉首尾空白；去空白后为空的行直接丢弃（不去重、保持顺序）
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := Scan(f)
	if err != nil {
		return nil, fmt.Errorf("读取 %q 失败：%w", path, err)
	}
	return lines, nil
}

// Scan 与 ReadLines 相同，但从任意 io.Reader 读取。
func Scan(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lines := make([]string, 0, 128)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ReadHTMLLinks 把输入文件当作 HTML 解析，按文档顺序提取所有 a[href]。
//
// - base 非空：相对链接按 base 解析为绝对 URL
// - base 为空：相对链接丢弃（无法定位）
// - 纯锚点（#xxx）与非 http/https 链接（mailto:/javascript: 等）丢弃
func ReadHTMLLinks(path, base string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	links, err := ScanHTML(f, base)
	if err != nil {
		return nil, fmt.Errorf("解析 HTML %q 失败：%w", path, err)
	}
	return links, nil
}

// ScanHTML 与 ReadHTMLLinks 相同，但从任意 io.Reader 读取。
func ScanHTML(r io.Reader, base string) ([]string, error) {
	var baseURL *url.URL
	if strings.TrimSpace(base) != "" {
		u, err := url.Parse(strings.TrimSpace(base))
		if err != nil {
			return nil, fmt.Errorf("base URL 无效：%w", err)
		}
		baseURL = u
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, 64)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u, ok := resolveHref(baseURL, href); ok {
			links = append(links, u)
		}
	})
	return links, nil
}

func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if base == nil {
			return "", false
		}
		u = base.ResolveReference(u)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
