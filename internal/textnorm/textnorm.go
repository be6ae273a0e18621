// Package textnorm 把自由文本规范化为可比较的形态（标题、release group、字幕换行）。
//
// 所有函数都是确定性的全函数，且幂等：Normalize(Normalize(x)) == Normalize(x)。
package textnorm

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// 视为“分隔符”的标点：统一替换为空格。
	separatorRE = regexp.MustCompile(`[.\-_:(),]+`)
	// 撇号直接删除：Grey's == Greys。
	apostropheRE = regexp.MustCompile(`['’` + "`" + `]`)
	spaceRE      = regexp.MustCompile(`\s+`)

	// release group 上常见的站点标签，例如 "[eztv]"、"[rarbg]"。
	bracketTagRE = regexp.MustCompile(`\[\w+\]`)
)

// Normalize 把标题类文本变为“大小写/标点不敏感”的比较形态。
//
// 规则：
// - 非法 UTF-8 无法表示，直接返回空串（不报错）
// - NFKD 分解后去掉组合附加符号（é -> e）
// - 小写；撇号删除；. - _ : ( ) , 与任意空白都折叠为单个空格
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	s = foldMarks(s)
	s = strings.ToLower(s)
	s = apostropheRE.ReplaceAllString(s, "")
	s = separatorRE.ReplaceAllString(s, " ")
	s = spaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeReleaseGroup 规范化 release group：去掉 [xxx] 站点标签、去首尾空白、大写。
func NormalizeReleaseGroup(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	// 去标签后可能拼出新的 [xxx]（例如 "[a[b]]"），循环到不再变化以保证幂等。
	for {
		next := bracketTagRE.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// FixLineEndings 统一换行为 "\n"（"\r\n" 与孤立的 "\r" 都会被替换）。
func FixLineEndings(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	out := bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
}

func foldMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
