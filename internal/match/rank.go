package match

import (
	"sort"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
)

// 信号权重（调用方侧的组合策略）；series 与 title 互斥地主导剧集/电影。
var weights = map[domain.Signal]int{
	domain.SignalSeries:       180,
	domain.SignalTitle:        90,
	domain.SignalSeason:       30,
	domain.SignalEpisode:      30,
	domain.SignalReleaseGroup: 15,
}

// Ranked 是一个已评分的候选。
type Ranked struct {
	Subtitle domain.Subtitle
	Matches  domain.Matches
	Score    int
}

// Weight 把信号集合折算为分数。
func Weight(m domain.Matches) int {
	n := 0
	for s := range m {
		n += weights[s]
	}
	return n
}

// Rank 为每个候选评分并排序：分数降序，其次下载数降序，最后按 ID 升序（稳定输出）。
func Rank(cands []domain.Subtitle, v domain.Video, guesser guess.Guesser, eq EquivalentGroups) []Ranked {
	out := make([]Ranked, 0, len(cands))
	for _, c := range cands {
		m := Subtitle(c, v, guesser, eq)
		out = append(out, Ranked{Subtitle: c, Matches: m, Score: Weight(m)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Subtitle.Downloads != b.Subtitle.Downloads {
			return a.Subtitle.Downloads > b.Subtitle.Downloads
		}
		return lessID(a.Subtitle.ID, b.Subtitle.ID)
	})
	return out
}

// Acceptable 判断信号是否足以自动选用：
// - 剧集：series + season + episode
// - 电影：title
func Acceptable(v domain.Video, m domain.Matches) bool {
	if v.IsEpisode() {
		return m.Has(domain.SignalSeries) && m.Has(domain.SignalSeason) && m.Has(domain.SignalEpisode)
	}
	return m.Has(domain.SignalTitle)
}

// ID 是十进制数字串：先比长度再比字典序，等价于数值比较。
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
