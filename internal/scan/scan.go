package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/subfetch/internal/domain"
)

// videoExts 是会被当作视频处理的扩展名（小写）。
var videoExts = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {},
	".mov": {}, ".wmv": {}, ".ts": {}, ".mpg": {}, ".mpeg": {},
}

// ScanVideos 扫描 root 下的视频文件。
//
// 规则：
// - 永久排除：<root>/cache/（listing 缓存与 report）
// - 以 '.' 开头的目录与文件一律跳过（NAS 缩略图目录、原子写的临时文件等）
// - excludeDirs 视为相对 root 的路径（绝对路径按绝对路径处理）
// - 只做 stat，不读文件内容；不跟随目录符号链接
// - 输出按 RelPath 排序
func ScanVideos(root string, excludeDirs []string) ([]domain.VideoFile, error) {
	root = filepath.Clean(root)
	excluded := excludedDirs(root, excludeDirs)

	files := make([]domain.VideoFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || under(path, excluded)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := videoExts[ext]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.VideoFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func excludedDirs(root string, extra []string) []string {
	out := []string{filepath.Join(root, "cache")}
	for _, x := range extra {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if !filepath.IsAbs(x) {
			x = filepath.Join(root, x)
		}
		out = append(out, filepath.Clean(x))
	}
	sort.Strings(out)
	return out
}

func under(path string, bases []string) bool {
	path = filepath.Clean(path)
	sep := string(filepath.Separator)
	for _, base := range bases {
		if path == base || strings.HasPrefix(path, base+sep) {
			return true
		}
	}
	return false
}
