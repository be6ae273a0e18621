// Package zipx 在内存中解开字幕压缩包，取出第一个字幕条目。
package zipx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/John-Robertt/subfetch/internal/textnorm"
)

// ErrMalformed 表示载荷不是合法的 zip 容器（或条目无法完整读出）。
var ErrMalformed = errors.New("zip 格式无效")

// MalformedError 携带底层解码错误；errors.Is(err, ErrMalformed) 为 true。
type MalformedError struct {
	Entry string // 出错的条目名；容器本身无效时为空
	Err   error
}

func (e *MalformedError) Error() string {
	if e == nil {
		return ErrMalformed.Error()
	}
	if e.Entry == "" {
		return fmt.Sprintf("%s：%v", ErrMalformed.Error(), e.Err)
	}
	return fmt.Sprintf("%s：条目 %q：%v", ErrMalformed.Error(), e.Entry, e.Err)
}

func (e *MalformedError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// FirstSubtitle 在内存中打开 zip，按目录顺序返回第一个扩展名为 ext（大小写不敏感）的条目内容。
//
// 约束：
// - 载荷不是合法 zip => *MalformedError
// - 没有匹配条目 => (nil, nil)，调用方视为“无可用载荷”
// - 返回内容已统一换行为 "\n"
// - 条目 reader 在返回前总会被关闭（成功与失败路径都一样）
func FirstSubtitle(payload []byte, ext string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &MalformedError{Err: err}
	}
	ext = strings.ToLower(ext)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ext) {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, &MalformedError{Entry: f.Name, Err: err}
		}
		return textnorm.FixLineEndings(b), nil
	}
	return nil, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
