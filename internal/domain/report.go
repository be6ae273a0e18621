package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
	StatusNotFound  = "not_found"
)

const (
	FileStatusPlanned  = "planned" // dry-run：已选中候选，apply 时会写入
	FileStatusWritten  = "written"
	FileStatusExists   = "exists"
	FileStatusNotFound = "not_found"
	FileStatusFailed   = "failed"
)

const (
	ErrCodeUnmatchedVideo    = "unmatched_video"
	ErrCodeFetchFailed       = "fetch_failed"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeDownloadFailed    = "download_failed"
	ErrCodeArchiveInvalid    = "archive_invalid"
	ErrCodeNoPayload         = "no_payload"
	ErrCodeNotFound          = "not_found"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Unmatched int `json:"unmatched"`
	NotFound  int `json:"not_found"`
}

type ItemResult struct {
	Key      string `json:"key"`
	Query    string `json:"query"`
	Provider string `json:"provider"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Candidates int          `json:"candidates"`
	Files      []FileResult `json:"files"`
}

// SelectedSubtitle 记录最终选中的候选字幕（用于追溯与人工复核）。
type SelectedSubtitle struct {
	ID        string   `json:"id"`
	Language  string   `json:"language"`
	Title     string   `json:"title"`
	Downloads int      `json:"downloads"`
	PageLink  string   `json:"page_link"`
	Matches   []string `json:"matches"`
}

// FileResult 是一个 sidecar 目标的结果；Language 为空表示该视频未能识别（unmatched）。
type FileResult struct {
	Src      string            `json:"src"`
	Dst      string            `json:"dst"`
	Language string            `json:"language"`
	Status   string            `json:"status"`
	Selected *SelectedSubtitle `json:"selected,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 key 字典序；key=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Key
		b := r.Items[j].Key
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnmatched:
			s.Unmatched++
		case StatusNotFound:
			s.NotFound++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
