package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/John-Robertt/subfetch/internal/textnorm"
)

// Query 是一次 listing 查询的全部输入。
//
// 约束：相同 Query => 相同结果（可安全缓存）；因此这里不包含任何会话/时间相关字段。
type Query struct {
	Series  string
	Season  int
	Episode int

	// 电影查询：Series 为空时使用。
	Title string
	Year  int
}

func (q Query) IsEpisode() bool { return strings.TrimSpace(q.Series) != "" }

// String 返回站点搜索框使用的文本，剧集形如 "The Wire S01E01"。
func (q Query) String() string {
	if q.IsEpisode() {
		return fmt.Sprintf("%s S%02dE%02d", strings.TrimSpace(q.Series), q.Season, q.Episode)
	}
	title := strings.TrimSpace(q.Title)
	if q.Year > 0 {
		return title + " " + strconv.Itoa(q.Year)
	}
	return title
}

// Key 返回稳定的缓存键：剧名/片名经 textnorm.Normalize 后，只保留 Unicode 字母与数字，
// 其余字符折叠为 "-"；剧集追加 "_sNNeNN"，带年份的电影追加 "_YYYY"。
//
// 约束：
// - 非拉丁文字（例如希腊文剧名）原样保留，不同剧名不会坍缩为同一个键
// - 剧名/片名规范化后为空 => 返回 ""（调用方视为无法识别）
func (q Query) Key() string {
	if q.IsEpisode() {
		name := slug(q.Series)
		if name == "" {
			return ""
		}
		return fmt.Sprintf("%s_s%02de%02d", name, q.Season, q.Episode)
	}
	name := slug(q.Title)
	if name == "" {
		return ""
	}
	if q.Year > 0 {
		name += "_" + strconv.Itoa(q.Year)
	}
	return name
}

func slug(s string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range textnorm.Normalize(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteRune('-')
			lastSep = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
