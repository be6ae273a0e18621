package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var (
	English = language.English
	Greek   = language.Greek
)

// SameLanguage 只比较基础语言（忽略地区/脚本），例如 el 与 el-GR 视为相同。
func SameLanguage(a, b language.Tag) bool {
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}

// ContainsLanguage 判断 tag 是否在 set 中（按 SameLanguage 比较）。
func ContainsLanguage(set []language.Tag, tag language.Tag) bool {
	for _, t := range set {
		if SameLanguage(t, tag) {
			return true
		}
	}
	return false
}

// ParseLanguages 解析配置/CLI 中的语言列表（支持 "el" / "ell" / "en-US" 等 BCP 47 写法）。
// 结果去重且保持输入顺序（顺序即优先级）。
func ParseLanguages(in []string) ([]language.Tag, error) {
	out := make([]language.Tag, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		t, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("无法识别的语言 %q：%w", s, err)
		}
		if ContainsLanguage(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// LanguageCode 返回用于文件名的 ISO 639-1 代码（例如 "el"）。
func LanguageCode(t language.Tag) string {
	b, _ := t.Base()
	return b.String()
}
