package app

import (
	"errors"
	"sort"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
	"github.com/John-Robertt/subfetch/internal/videoname"
)

// GroupByQuery 识别每个视频文件，并按 listing 查询键分组为 WorkItem。
//
// - items 稳定排序：按 Key 字典序
// - item 内 FileIdx/Videos 稳定排序：按 RelPath 字典序
// - 识别失败的文件进入 unmatched（不影响其他文件）
func GroupByQuery(files []domain.VideoFile, g guess.Guesser) (items []domain.WorkItem, unmatched []domain.Unmatched, err error) {
	type member struct {
		idx   int
		video domain.Video
	}
	index := make(map[string]int, 128)
	groups := make([][]member, 0, 128)
	unmatched = make([]domain.Unmatched, 0, 32)

	for i := range files {
		v, e := videoname.Identify(files[i], g)
		if e != nil {
			var ue *videoname.UnmatchedError
			if errors.As(e, &ue) {
				unmatched = append(unmatched, domain.Unmatched{File: files[i], Kind: ue.Kind})
				continue
			}
			return nil, nil, e
		}

		key := v.Query().Key()
		if key == "" {
			unmatched = append(unmatched, domain.Unmatched{File: files[i], Kind: videoname.KindNoMatch})
			continue
		}
		if gi, ok := index[key]; ok {
			groups[gi] = append(groups[gi], member{idx: i, video: v})
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []member{{idx: i, video: v}})
	}

	items = make([]domain.WorkItem, 0, len(groups))
	for _, ms := range groups {
		sort.Slice(ms, func(a, b int) bool { return files[ms[a].idx].RelPath < files[ms[b].idx].RelPath })
		it := domain.WorkItem{
			Key:     ms[0].video.Query().Key(),
			Query:   ms[0].video.Query(),
			FileIdx: make([]int, 0, len(ms)),
			Videos:  make([]domain.Video, 0, len(ms)),
		}
		for _, m := range ms {
			it.FileIdx = append(it.FileIdx, m.idx)
			it.Videos = append(it.Videos, m.video)
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, unmatched, nil
}
