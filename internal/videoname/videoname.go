// Package videoname 从视频文件名（必要时结合父目录）识别剧集/电影。
package videoname

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
)

// 季目录："Season 1"、"S01"、"Σεζόν 2" 等。
var seasonDirRE = regexp.MustCompile(`(?i)^(?:season|series|staffel|saison|σεζόν|s)[\s._-]*(\d{1,2})$`)

const (
	KindNoMatch    = "no_match"
	KindIncomplete = "incomplete"
)

type UnmatchedError struct {
	// Kind: KindNoMatch（完全猜不出标题）或 KindIncomplete（是剧集但缺季/集号或剧名）
	Kind string
	Name string
}

func (e *UnmatchedError) Error() string {
	switch e.Kind {
	case KindNoMatch:
		return "无法从文件名识别出剧名或片名：" + e.Name
	case KindIncomplete:
		return "识别出剧集但缺少剧名/季号/集号：" + e.Name
	default:
		return "unmatched"
	}
}

// Identify 把 VideoFile 识别为 domain.Video。失败时返回 *UnmatchedError。
//
// 规则：
// - 猜出 episode 即视为剧集；季号缺失时可由 "Season N" 目录补齐
// - 剧名缺失时依次回退到父目录、（父目录是季目录时）祖父目录
// - 没有 episode 但有标题 => 电影
func Identify(f domain.VideoFile, g guess.Guesser) (domain.Video, error) {
	if g == nil {
		g = guess.Default
	}
	name := f.Base + f.Ext
	got := g.Guess(name)

	parent := filepath.Base(filepath.Dir(f.AbsPath))
	showDir := parent
	dirSeason := 0
	if m := seasonDirRE.FindStringSubmatch(strings.TrimSpace(parent)); m != nil {
		dirSeason, _ = strconv.Atoi(m[1])
		showDir = filepath.Base(filepath.Dir(filepath.Dir(f.AbsPath)))
	}

	if got.Episode > 0 {
		v := domain.Video{
			Kind:         domain.KindEpisode,
			Name:         name,
			Series:       strings.TrimSpace(got.Title),
			Season:       got.Season,
			Episode:      got.Episode,
			Year:         got.Year,
			ReleaseGroup: strings.TrimSpace(got.ReleaseGroup),
		}
		if v.Season == 0 {
			v.Season = dirSeason
		}
		if v.Series == "" {
			v.Series = dirTitle(showDir, g)
		}
		if v.Series == "" || v.Season == 0 {
			return domain.Video{}, &UnmatchedError{Kind: KindIncomplete, Name: name}
		}
		return v, nil
	}

	title := strings.TrimSpace(got.Title)
	if title == "" {
		return domain.Video{}, &UnmatchedError{Kind: KindNoMatch, Name: name}
	}
	return domain.Video{
		Kind:         domain.KindMovie,
		Name:         name,
		Title:        title,
		Year:         got.Year,
		ReleaseGroup: strings.TrimSpace(got.ReleaseGroup),
	}, nil
}

func dirTitle(dir string, g guess.Guesser) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	if t := strings.TrimSpace(g.Guess(dir).Title); t != "" {
		return t
	}
	return dir
}
