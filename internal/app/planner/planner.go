package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/infra/fsx"
)

// SidecarName 返回视频 base 对应的字幕文件名：<base>.<lang>.srt（lang 为 ISO 639-1）。
func SidecarName(base string, lang language.Tag) string {
	return base + "." + domain.LanguageCode(lang) + ".srt"
}

// DirState 缓存每个目录的文件名集合（只做 ReadDir，不读内容），同一目录只读一次。
// 文件名比较大小写不敏感（"Ep.EL.SRT" 也视为已存在）。
type DirState struct {
	names map[string]map[string]struct{}
}

func NewDirState() *DirState {
	return &DirState{names: map[string]map[string]struct{}{}}
}

func (s *DirState) has(dir, name string) (bool, error) {
	set, ok := s.names[dir]
	if !ok {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return false, err
		}
		set = make(map[string]struct{}, len(entries))
		for _, e := range entries {
			set[strings.ToLower(e.Name())] = struct{}{}
		}
		s.names[dir] = set
	}
	_, ok = set[strings.ToLower(name)]
	return ok, nil
}

// PlanItem 基于 WorkItem 与磁盘现状生成确定性的执行计划（不做任何写入）。
//
// 约束：
// - 每个文件 × 每个语言一个 SidecarPlan，顺序稳定
// - 已存在的目标（含同名目录等类型冲突）标记为 Exists 或返回错误，不会被覆盖
func PlanItem(providerRequested string, langs []language.Tag, files []domain.VideoFile, item domain.WorkItem, st *DirState) (domain.ItemPlan, error) {
	if len(langs) == 0 {
		return domain.ItemPlan{}, fmt.Errorf("languages 不能为空")
	}
	if len(item.Videos) != len(item.FileIdx) {
		return domain.ItemPlan{}, fmt.Errorf("WorkItem 不一致：%d 个文件，%d 个视频", len(item.FileIdx), len(item.Videos))
	}
	if st == nil {
		st = NewDirState()
	}

	plan := domain.ItemPlan{
		Key:               item.Key,
		Query:             item.Query,
		ProviderRequested: providerRequested,
		Sidecars:          make([]domain.SidecarPlan, 0, len(item.FileIdx)*len(langs)),
	}
	for i, idx := range item.FileIdx {
		if idx < 0 || idx >= len(files) {
			return domain.ItemPlan{}, fmt.Errorf("非法 file index：%d", idx)
		}
		f := files[idx]
		dir := filepath.Dir(f.AbsPath)
		for _, lang := range langs {
			name := SidecarName(f.Base, lang)
			dst := filepath.Join(dir, name)
			exists, err := st.has(dir, name)
			if err != nil {
				return domain.ItemPlan{}, err
			}
			if exists {
				// 同名但不是普通文件：交给上层报告 target_conflict。
				if _, err := fsx.FileState(dst); err != nil {
					return domain.ItemPlan{}, err
				}
			}
			plan.Sidecars = append(plan.Sidecars, domain.SidecarPlan{
				FileIdx:  idx,
				Video:    item.Videos[i],
				Language: lang,
				DstAbs:   dst,
				Exists:   exists,
			})
			if !exists {
				plan.NeedFetch = true
			}
		}
	}
	return plan, nil
}
