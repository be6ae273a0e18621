package domain

import "sort"

// Signal 是一个布尔型匹配维度。
type Signal string

const (
	SignalSeason       Signal = "season"
	SignalEpisode      Signal = "episode"
	SignalSeries       Signal = "series"
	SignalTitle        Signal = "title"
	SignalReleaseGroup Signal = "release_group"
)

// Matches 是一次 (subtitle, video) 比较得到的信号集合。
// 只表达“有/无”，不带权重；如何组合成分数由调用方决定。
type Matches map[Signal]struct{}

func NewMatches(signals ...Signal) Matches {
	m := make(Matches, len(signals))
	for _, s := range signals {
		m[s] = struct{}{}
	}
	return m
}

func (m Matches) Add(s Signal) { m[s] = struct{}{} }

func (m Matches) Has(s Signal) bool {
	_, ok := m[s]
	return ok
}

func (m Matches) Len() int { return len(m) }

// Names 返回排序后的信号名（用于报告/展示，保证稳定输出）。
func (m Matches) Names() []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}
