package domain

// Guess 是标题猜测器从自由文本中解析出的结构化结果。
// 任何字段都可能缺失（零值），缺失不是错误。
type Guess struct {
	Title        string
	Season       int
	Episode      int
	Year         int
	ReleaseGroup string
}
