package domain

// Unmatched 描述无法从文件名识别出剧集/电影信息的输入文件。
type Unmatched struct {
	File VideoFile
	Kind string // "no_match" | "incomplete"
}
