package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultOutputFolder 是输出目录的默认值（当前目录）。
	DefaultOutputFolder = "."
	// DefaultConcurrency 是下载并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 8
	// MaxConcurrency 是下载并发的上限；超出截断。
	MaxConcurrency = 64
	// DefaultNameFrom 是最终文件名的默认依据。
	DefaultNameFrom = "response"
	// DefaultLogLevel 是日志级别的默认值。
	DefaultLogLevel = "info"

	// configName 是 cwd 下自动发现的配置文件名（扩展名可为 json/yaml/toml）。
	configName = "batchdl"
	envPrefix  = "BATCHDL"
)

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// InputFile 与 OutputDir 均为 clean + absolute。
	InputFile string
	OutputDir string

	Concurrency  int
	ProxyURL     string
	NameFrom     string
	StrictStatus bool

	// ForceHTML 把输入文件当作 HTML，提取 a[href]；BaseURL 用于解析相对链接。
	ForceHTML bool
	BaseURL   string

	// ReportPath 为空表示不写 report。
	ReportPath string
	LogLevel   string

	// ConfigFile 是实际读取到的配置文件（未读取则为空）。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RegisterFlags 注册 CLI 参数；key 与配置文件字段一一对应（见 bindings）。
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "配置文件路径（默认自动发现 ./batchdl.{json,yaml,toml}）")
	flags.StringP("output-folder", "o", DefaultOutputFolder, "下载输出目录（必须已存在）")
	flags.IntP("concurrency", "j", DefaultConcurrency, fmt.Sprintf("同时下载数 [1, %d]", MaxConcurrency))
	flags.String("proxy", "", "代理 URL（例如 http://127.0.0.1:8080）")
	flags.String("name-from", DefaultNameFrom, "最终文件名依据：response（跟随重定向后的 URL）| request（请求前猜测）")
	flags.Bool("strict-status", false, "把非 2xx 响应视为失败（默认照常写盘）")
	flags.BoolP("force-html", "F", false, "把输入文件当作 HTML，下载其中的 a[href] 链接")
	flags.StringP("base", "B", "", "force-html 模式下解析相对链接的 base URL")
	flags.String("report", "", "把运行结果 JSON 写入该文件（所在目录必须已存在）")
	flags.String("log-level", DefaultLogLevel, "日志级别：debug|info|warn|error")
}

// bindings：viper key -> flag name。
var bindings = [][2]string{
	{"output_folder", "output-folder"},
	{"concurrency", "concurrency"},
	{"proxy.url", "proxy"},
	{"name_from", "name-from"},
	{"strict_status", "strict-status"},
	{"force_html", "force-html"},
	{"base_url", "base"},
	{"report", "report"},
	{"log_level", "log-level"},
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数/环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) --config 指定：必须存在且可解析
// 2) 未指定：尝试读取 <cwd>/batchdl.{json,yaml,toml}（可选）
//
// 覆盖优先级（固定，由 viper 保证）：
// 显式 CLI 参数 > 环境变量 BATCHDL_* > 配置文件 > 内置默认
//
// 相对路径（input/output_folder/report）均以 cwd 为基准。
func LoadEffective(cwd, input string, flags *pflag.FlagSet) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if strings.TrimSpace(input) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: errors.New("input_file 不能为空")}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		f := flags.Lookup(b[1])
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b[0], f); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
		}
	}

	cfgPath, err := readConfig(v, cwdAbs, flags)
	if err != nil {
		return EffectiveConfig{}, err
	}

	return merge(v, cwdAbs, input, cfgPath)
}

func readConfig(v *viper.Viper, cwdAbs string, flags *pflag.FlagSet) (string, error) {
	explicit := ""
	if f := flags.Lookup("config"); f != nil {
		explicit = strings.TrimSpace(f.Value.String())
	}

	if explicit != "" {
		p := absCleanFrom(cwdAbs, explicit)
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", &Error{Code: ErrCodeNotFound, Path: p, Err: err}
			}
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		return p, nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(cwdAbs)
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if errors.As(err, &nf) {
			return "", nil // 不存在也不报错
		}
		return "", &Error{Code: ErrCodeInvalid, Path: v.ConfigFileUsed(), Err: err}
	}
	return v.ConfigFileUsed(), nil
}

func merge(v *viper.Viper, cwdAbs, input, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	out := strings.TrimSpace(v.GetString("output_folder"))
	if out == "" {
		out = DefaultOutputFolder
	}

	concurrency := v.GetInt("concurrency")
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	proxyURL := strings.TrimSpace(v.GetString("proxy.url"))
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
		if u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 缺少 scheme 或 host：%q", proxyURL))
		}
	}

	nameFrom := strings.ToLower(strings.TrimSpace(v.GetString("name_from")))
	if nameFrom == "" {
		nameFrom = DefaultNameFrom
	}
	switch nameFrom {
	case "response", "request":
	default:
		return EffectiveConfig{}, invalid(fmt.Errorf("name_from 只能是 response 或 request，实际是 %q", nameFrom))
	}

	baseURL := strings.TrimSpace(v.GetString("base_url"))
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("base_url 无效：%q", baseURL))
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return EffectiveConfig{}, invalid(fmt.Errorf("base_url 必须是 http/https：%q", baseURL))
		}
	}

	logLevel := strings.ToLower(strings.TrimSpace(v.GetString("log_level")))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if _, err := log.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid(fmt.Errorf("log_level 无效：%q", logLevel))
	}

	report := strings.TrimSpace(v.GetString("report"))
	if report != "" {
		report = absCleanFrom(cwdAbs, report)
	}

	return EffectiveConfig{
		InputFile:    absCleanFrom(cwdAbs, input),
		OutputDir:    absCleanFrom(cwdAbs, out),
		Concurrency:  concurrency,
		ProxyURL:     proxyURL,
		NameFrom:     nameFrom,
		StrictStatus: v.GetBool("strict_status"),
		ForceHTML:    v.GetBool("force_html"),
		BaseURL:      baseURL,
		ReportPath:   report,
		LogLevel:     logLevel,
		ConfigFile:   cfgPath,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
