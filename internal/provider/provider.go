package provider

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/domain"
)

// SubtitleExt 是压缩包中被视为字幕文件的扩展名。
const SubtitleExt = ".srt"

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与 domain.Subtitle。
//
// 约束：
// - Fetch/Download 不做缓存、不做重试、不做限速（这些由 Session 与 http 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出（异常记录只记日志并跳过）
// - 非 2xx 一律返回 *HTTPStatusError
type Provider interface {
	Name() string
	Languages() []language.Tag
	Fetch(ctx context.Context, q domain.Query, c *http.Client) (html []byte, pageURL string, err error)
	Parse(q domain.Query, html []byte, pageURL string) ([]domain.Subtitle, error)
	Download(ctx context.Context, sub domain.Subtitle, c *http.Client) ([]byte, error)
}

const (
	StageFetch    = "fetch"
	StageParse    = "parse"
	StageDownload = "download"
	StageExtract  = "extract"
)

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed / download_failed / archive_invalid。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // Stage* 常量之一
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
