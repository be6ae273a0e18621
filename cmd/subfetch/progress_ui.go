package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/subfetch/internal/app/run"
	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 约束：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间无条目完成时也会定期输出一行（含正在处理的查询）
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers  int
	total    int
	done     int
	ok       int
	fail     int
	skip     int
	notFound int
	active   map[string]struct{}

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		active:             map[string]struct{}{},
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (只搜索与选择，不下载/不写入)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	langs := make([]string, 0, len(eff.Languages))
	for _, t := range eff.Languages {
		langs = append(langs, domain.LanguageCode(t))
	}

	fmt.Fprintf(p.w, "[%s] subfetch run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  provider: %s\n", eff.Provider)
	fmt.Fprintf(p.w, "  languages: %s\n", strings.Join(langs, ","))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  cache_ttl: %s\n", eff.CacheTTL)
	if strings.TrimSpace(eff.SearchBaseURL) != "" {
		fmt.Fprintf(p.w, "  search_base_url: %s\n", truncate(eff.SearchBaseURL, 120))
	}
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 cache/\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintf(p.w, "  cache: %s\n", filepath.Join(eff.Path, "cache"))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d unmatched=%d (%s)\n",
			intField(fields, "files"), intField(fields, "unmatched"), formatShortDuration(dur),
		)
	case "group":
		fmt.Fprintf(p.w, "分组: queries=%d (%s)\n",
			intField(fields, "queries"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: items=%d need_fetch=%d missing=%d (%s)\n",
			intField(fields, "items"),
			intField(fields, "need_fetch"),
			intField(fields, "missing"),
			formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemStart(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[key] = struct{}{}
}

func (p *progressUI) OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total
	delete(p.active, key)

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		status = "OK"
	case domain.StatusFailed:
		p.fail++
		status = "FAIL"
	case domain.StatusSkipped:
		p.skip++
		status = "SKIP"
	case domain.StatusNotFound:
		p.notFound++
		status = "NONE"
	}

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, res.Query, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (字幕已齐全) (%s)\n",
			idx, total, res.Query, status, formatShortDuration(dur),
		)
	case domain.StatusNotFound:
		fmt.Fprintf(p.w, "[%d/%d] %s %s candidates=%d (%s)\n",
			idx, total, res.Query, status, res.Candidates, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s candidates=%d %s (%s)\n",
			idx, total, res.Query, status, res.Candidates, formatFileCounts(res.Files), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

// Stop 停止 keepalive ticker（例如 ctx 取消导致条目没有全部完成）。可重复调用。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.progressLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) progressLineLocked() string {
	keys := make([]string, 0, len(p.active))
	for k := range p.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	line := fmt.Sprintf("进度: done=%d/%d ok=%d fail=%d skip=%d none=%d active=%d elapsed=%s",
		p.done, p.total, p.ok, p.fail, p.skip, p.notFound, len(keys), formatElapsed(time.Since(p.startedAt)),
	)
	if len(keys) > 0 {
		line += " [" + truncate(strings.Join(keys, " "), 100) + "]"
	}
	return line
}

// formatFileCounts 汇总 sidecar 状态，例如 "written=2 exists=1"（按状态名排序）。
func formatFileCounts(files []domain.FileResult) string {
	counts := map[string]int{}
	for _, f := range files {
		counts[f.Status]++
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
