// Package match 比较字幕标题的猜测结果与本地视频，产出独立的匹配信号。
//
// Score/Subtitle 是纯函数：无网络、无磁盘、无日志，永不失败。
package match

import (
	"strings"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
	"github.com/John-Robertt/subfetch/internal/textnorm"
)

// EquivalentGroups 把规范化后的 release group 映射为其等价组名集合。
type EquivalentGroups func(normalized string) []string

// Score 计算 g 与 v 的匹配信号。各规则互相独立，全部求值。
//
// eq 为 nil 时只认组名自身（无别名）。
func Score(g domain.Guess, v domain.Video, eq EquivalentGroups) domain.Matches {
	m := domain.NewMatches()

	if v.IsEpisode() {
		if v.Season > 0 && g.Season == v.Season {
			m.Add(domain.SignalSeason)
		}
		if v.Episode > 0 && g.Episode == v.Episode {
			m.Add(domain.SignalEpisode)
		}
	}

	guessed := textnorm.Normalize(g.Title)
	if guessed != "" {
		if v.Series != "" && guessed == textnorm.Normalize(v.Series) {
			m.Add(domain.SignalSeries)
		}
		if v.Title != "" && guessed == textnorm.Normalize(v.Title) {
			m.Add(domain.SignalTitle)
		}
	}

	if releaseGroupMatches(g.ReleaseGroup, v.ReleaseGroup, eq) {
		m.Add(domain.SignalReleaseGroup)
	}
	return m
}

// Subtitle 先用 guesser 解析字幕标题，再与 v 比较。
func Subtitle(sub domain.Subtitle, v domain.Video, guesser guess.Guesser, eq EquivalentGroups) domain.Matches {
	if guesser == nil {
		guesser = guess.Default
	}
	return Score(guesser.Guess(sub.Title), v, eq)
}

func releaseGroupMatches(guessed, video string, eq EquivalentGroups) bool {
	guessed = textnorm.NormalizeReleaseGroup(guessed)
	video = textnorm.NormalizeReleaseGroup(video)
	if guessed == "" || video == "" {
		return false
	}
	aliases := []string{video}
	if eq != nil {
		if got := eq(video); len(got) > 0 {
			aliases = got
		}
	}
	for _, a := range aliases {
		a = textnorm.NormalizeReleaseGroup(a)
		if a != "" && strings.Contains(guessed, a) {
			return true
		}
	}
	return false
}
