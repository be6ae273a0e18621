package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// 不做重试；上层据此生成可操作的 error_msg。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d（%s）", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d（%s）location=%s", e.StatusCode, e.URL, loc)
}
