package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/infra/cache"
)

// FileName 是配置文件的固定文件名。
const FileName = "subfetch.json"

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 subfetch.json。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = domain.ErrCodeConfigMissingPath
)

const (
	// DefaultProvider 是 provider 的最终默认值（当 CLI 与配置文件都未指定时）。
	DefaultProvider = "greeksubs"
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// MaxConcurrency 是并发上限；超出截断。
	MaxConcurrency = 32
)

// DefaultLanguages 是 languages 的默认值，顺序即优先级。
var DefaultLanguages = []string{"el", "en"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	Provider    string
	ProviderSet bool

	Apply    bool
	ApplySet bool

	Languages []string
}

// FileConfig 对应 subfetch.json 的解析结构。
type FileConfig struct {
	Path        string           `json:"path"`
	Provider    string           `json:"provider"`
	Languages   []string         `json:"languages"`
	Apply       *bool            `json:"apply"`
	Concurrency int              `json:"concurrency"`
	Proxy       *ProxyConfig     `json:"proxy"`
	CacheTTL    string           `json:"cache_ttl"`
	LogLevel    string           `json:"log_level"`
	ExcludeDirs []string         `json:"exclude_dirs"`
	GreekSubs   *GreekSubsConfig `json:"greeksubs"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// GreekSubsConfig 允许把站点地址指向镜像（或测试服务器）。
type GreekSubsConfig struct {
	SearchBaseURL   string `json:"search_base_url"`
	DownloadBaseURL string `json:"download_base_url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Provider  string
	Languages []language.Tag
	Apply     bool

	Concurrency int
	ProxyURL    string
	CacheTTL    time.Duration
	LogLevel    string // 空表示交给 logx（LOG_LEVEL 环境变量或 info）
	ExcludeDirs []string

	SearchBaseURL   string
	DownloadBaseURL string
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
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
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

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/subfetch.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/subfetch.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - provider：CLI > config > 默认 greeksubs
// - apply：CLI --apply/--apply=false > config > 默认 false
// - languages：CLI --language > config > 默认 el,en
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(absCleanFrom(cwdAbs, fc.Path), cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	provider := DefaultProvider
	if cli.ProviderSet {
		provider = cli.Provider
	} else if strings.TrimSpace(fc.Provider) != "" {
		provider = fc.Provider
	}
	if err := validateProvider(provider); err != nil {
		return invalid(err)
	}

	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	rawLangs := DefaultLanguages
	if len(cli.Languages) > 0 {
		rawLangs = cli.Languages
	} else if len(fc.Languages) > 0 {
		rawLangs = fc.Languages
	}
	langs, err := domain.ParseLanguages(rawLangs)
	if err != nil {
		return invalid(fmt.Errorf("languages 无效：%w", err))
	}
	if len(langs) == 0 {
		return invalid(fmt.Errorf("languages 不能为空"))
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if err := validateHTTPURL("proxy.url", proxyURL); err != nil {
			return invalid(err)
		}
	}

	ttl := cache.DefaultTTL
	if s := strings.TrimSpace(fc.CacheTTL); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return invalid(fmt.Errorf("cache_ttl 无效：%q", s))
		}
		ttl = d
	}

	level := strings.ToLower(strings.TrimSpace(fc.LogLevel))
	if level != "" {
		if _, err := logrus.ParseLevel(level); err != nil {
			return invalid(fmt.Errorf("log_level 无效：%w", err))
		}
	}

	var searchBase, downloadBase string
	if fc.GreekSubs != nil {
		searchBase = strings.TrimRight(strings.TrimSpace(fc.GreekSubs.SearchBaseURL), "/")
		downloadBase = strings.TrimRight(strings.TrimSpace(fc.GreekSubs.DownloadBaseURL), "/")
	}
	if searchBase != "" {
		if err := validateHTTPURL("greeksubs.search_base_url", searchBase); err != nil {
			return invalid(err)
		}
	}
	if downloadBase != "" {
		if err := validateHTTPURL("greeksubs.download_base_url", downloadBase); err != nil {
			return invalid(err)
		}
	}

	return EffectiveConfig{
		Path:            absPath,
		Provider:        provider,
		Languages:       langs,
		Apply:           apply,
		Concurrency:     concurrency,
		ProxyURL:        proxyURL,
		CacheTTL:        ttl,
		LogLevel:        level,
		ExcludeDirs:     append([]string(nil), fc.ExcludeDirs...),
		SearchBaseURL:   searchBase,
		DownloadBaseURL: downloadBase,
	}, nil
}

func validateProvider(p string) error {
	switch p {
	case "greeksubs":
		return nil
	case "":
		return fmt.Errorf("provider 不能为空")
	default:
		return fmt.Errorf("provider 只能是 greeksubs，实际是 %q", p)
	}
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if field != "proxy.url" && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
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

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
