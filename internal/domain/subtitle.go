package domain

import (
	"errors"

	"golang.org/x/text/language"
)

var ErrContentAlreadySet = errors.New("subtitle content 已经设置过")

// Subtitle 是搜索结果中解析出的一条候选字幕。
//
// 约束：
// - 每行记录构造一次，之后字段只读
// - content 只在下载后写入一次（SetContent），再次写入返回 ErrContentAlreadySet
type Subtitle struct {
	Provider  string
	Language  language.Tag
	ID        string // provider 分配的数字 ID
	Title     string // listing 上的原始标题
	Downloads int    // 只作为热度信号，不做过滤
	PageLink  string

	content []byte
	hasBody bool
}

func (s *Subtitle) SetContent(b []byte) error {
	if s.hasBody {
		return ErrContentAlreadySet
	}
	s.content = append([]byte(nil), b...)
	s.hasBody = true
	return nil
}

func (s *Subtitle) Content() []byte { return s.content }

func (s *Subtitle) HasContent() bool { return s.hasBody }
