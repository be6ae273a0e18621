package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 测试可替换，用于模拟 rename 失败。
var renameFunc = os.Rename

// tempMarker 标记原子写临时文件的前缀：."<name>.tmp-"。扫描器据此跳过残留临时文件。
const tempMarker = ".tmp-"

// PathTypeConflictError 表示目标路径存在但类型不对（例如期望文件，实际是目录）。
// 上层映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// FileState 探测 path 是否已是普通文件。
//
// - 不存在：(false, nil)
// - 普通文件：(true, nil)
// - 目录/符号链接等：*PathTypeConflictError
func FileState(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() {
		return false, &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return false, &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return true, nil
}

// IsTempName 判断文件名是否为本包写出的临时文件。
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}

// WriteSidecar 原子写入字幕 sidecar；目标已存在时返回 os.ErrExist（不覆盖用户文件）。
func WriteSidecar(dir, name string, data []byte) error {
	exists, err := FileState(filepath.Join(filepath.Clean(dir), name))
	if err != nil {
		return err
	}
	if exists {
		return os.ErrExist
	}
	return writeAtomic(dir, name, data)
}

// WriteState 原子写入内部状态文件（cache/report），允许覆盖。
func WriteState(dir, name string, data []byte) error {
	return writeAtomic(dir, name, data)
}

func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 临时文件与目标同目录，rename 才是原子的。
	tmp, err := os.CreateTemp(dir, "."+name+tempMarker+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// 目录 fsync 只是 best-effort；Windows 不支持。
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
