package naming

import (
	"net/url"
	"strings"
)

// PreFetch 在发请求之前根据原始 URL 猜测本地文件名：取最后一个 '/' 之后的部分。
//
// 规则（固定）：
// - 不做解码/规范化/清洗，原样返回
// - URL 中没有 '/'：整个字符串就是文件名
// - 以 '/' 结尾：返回空串（由调用方用 Valid 拒绝）
func PreFetch(rawURL string) string {
	i := strings.LastIndex(rawURL, "/")
	if i < 0 {
		return rawURL
	}
	return rawURL[i+1:]
}

// Resolve 在拿到响应之后，用最终响应 URL（跟随重定向后）的最后一个路径段作为文件名。
// 最后一段为空、或 URL 没有层级路径（opaque）时，回退到 pre。
//
// 注意：使用转义后的 path（EscapedPath），与 PreFetch 一样不做 URL 解码。
func Resolve(final *url.URL, pre string) string {
	if final == nil || final.Opaque != "" {
		return pre
	}
	p := final.EscapedPath()
	seg := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		seg = p[i+1:]
	}
	if seg == "" {
		return pre
	}
	return seg
}

// Valid 判断 name 能否作为输出目录下的文件名。
// 只拒绝空串与 "."/".."（它们会指向输出目录本身或其父目录）；其余字符不做处理。
func Valid(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	default:
		return true
	}
}
