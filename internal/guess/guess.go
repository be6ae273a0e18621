// Package guess 从自由文本（文件名、字幕标题）中猜测结构化元数据。
//
// 猜测永不失败：无法识别的字段保持零值。
package guess

import (
	"path/filepath"
	"strings"

	ptn "github.com/razsteinmetz/go-ptn"

	"github.com/John-Robertt/subfetch/internal/domain"
)

// Guesser 把一段自由文本解析为 domain.Guess。
type Guesser interface {
	Guess(text string) domain.Guess
}

// Func 让普通函数满足 Guesser（测试中常用）。
type Func func(text string) domain.Guess

func (f Func) Guess(text string) domain.Guess { return f(text) }

// PTN 基于 go-ptn 的 release 名解析。
type PTN struct{}

func (PTN) Guess(text string) domain.Guess {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Guess{}
	}
	info, err := ptn.Parse(stripVideoExt(text))
	if err != nil || info == nil {
		// 解析失败时退化为“整段文本即标题”。
		return domain.Guess{Title: strings.ReplaceAll(text, ".", " ")}
	}
	return domain.Guess{
		Title:        strings.TrimSpace(info.Title),
		Year:         nonNegative(info.Year),
		Season:       nonNegative(info.Season),
		Episode:      nonNegative(info.Episode),
		ReleaseGroup: strings.TrimSpace(info.Group),
	}
}

// Default 是生产环境使用的 Guesser。
var Default Guesser = PTN{}

var videoExts = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".mov": {}, ".wmv": {}, ".ts": {},
}

func stripVideoExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := videoExts[ext]; ok {
		return name[:len(name)-len(ext)]
	}
	return name
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
