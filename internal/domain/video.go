package domain

// VideoFile 描述一次扫描得到的视频文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
type VideoFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // ".mkv"
	Size    int64
	ModUnix int64
}

type VideoKind string

const (
	KindEpisode VideoKind = "episode"
	KindMovie   VideoKind = "movie"
)

// Video 是“本地已知视频”的只读描述（剧集或电影）。
//
// 约束：
// - 零值表示未知：Season/Episode/Year 为 0，字符串为空
// - Season/Episode 只在 Kind==KindEpisode 时有意义
// - Title 对剧集来说是单集标题（可为空），对电影来说是片名
type Video struct {
	Kind VideoKind
	Name string // 来源文件名（用于日志/报告）

	Series  string
	Title   string
	Season  int
	Episode int
	Year    int

	ReleaseGroup string
}

func (v Video) IsEpisode() bool { return v.Kind == KindEpisode }

// Query 返回用于站点搜索的查询条件。
func (v Video) Query() Query {
	if v.IsEpisode() {
		return Query{Series: v.Series, Season: v.Season, Episode: v.Episode}
	}
	return Query{Title: v.Title, Year: v.Year}
}
