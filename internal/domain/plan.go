package domain

import "golang.org/x/text/language"

// SidecarPlan 是一个 (视频文件, 语言) 目标：<dir>/<base>.<lang>.srt。
// 只描述目标；真正写入在 apply 阶段。
type SidecarPlan struct {
	FileIdx  int // 指向 []VideoFile
	Video    Video
	Language language.Tag
	DstAbs   string
	Exists   bool // 目标已存在：不覆盖、不抓取
}

// ItemPlan 是对某个查询键的最小执行计划。
type ItemPlan struct {
	Key               string
	Query             Query
	ProviderRequested string

	// Sidecars 按 (FileIdx 在 WorkItem 中的顺序, 语言优先级) 排列。
	Sidecars []SidecarPlan
	// NeedFetch=false 表示所有目标都已存在，无需查询 listing。
	NeedFetch bool
}
