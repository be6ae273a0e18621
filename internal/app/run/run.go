package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/app"
	"github.com/John-Robertt/subfetch/internal/app/planner"
	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/guess"
	"github.com/John-Robertt/subfetch/internal/infra/cache"
	"github.com/John-Robertt/subfetch/internal/infra/fsx"
	"github.com/John-Robertt/subfetch/internal/infra/httpx"
	"github.com/John-Robertt/subfetch/internal/infra/logx"
	"github.com/John-Robertt/subfetch/internal/infra/zipx"
	"github.com/John-Robertt/subfetch/internal/match"
	"github.com/John-Robertt/subfetch/internal/provider"
	"github.com/John-Robertt/subfetch/internal/scan"
	"github.com/John-Robertt/subfetch/internal/videoname"
)

// ReportName 是 apply 模式下写入 <path>/cache/ 的报告文件名。
const ReportName = "report.json"

// maxAttempts 是单个 sidecar 最多尝试下载的候选数（其余候选的字幕包可能只有 .sub/.ass）。
const maxAttempts = 3

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, reg, nil, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 与日志（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, obs Observer, log logrus.FieldLogger) domain.RunReport {
	started := time.Now().UTC()
	log = logx.OrDiscard(log)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	fail := func(code, msg string) domain.RunReport {
		rr.Items = append(rr.Items, syntheticFailed(code, msg))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	p, ok := reg.Get(eff.Provider)
	if !ok {
		return fail(domain.ErrCodeConfigInvalid, fmt.Sprintf("未注册的 provider：%q", eff.Provider))
	}
	langs := supportedLanguages(eff.Languages, p.Languages())
	if len(langs) == 0 {
		return fail(domain.ErrCodeConfigInvalid, fmt.Sprintf("%s 不支持任何已配置的语言：%v", p.Name(), eff.Languages))
	}
	if len(langs) < len(eff.Languages) {
		log.WithField("languages", eff.Languages).Warnf("%s 只支持 %v，忽略其余语言", p.Name(), langs)
	}
	if _, err := httpx.NewClient(eff.ProxyURL); err != nil {
		return fail(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err))
	}

	store := cache.New(eff.Path, !eff.Apply, eff.CacheTTL)

	scanStarted := time.Now()
	files, err := scan.ScanVideos(eff.Path, eff.ExcludeDirs)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err))
	}
	scanDur := time.Since(scanStarted)

	groupStarted := time.Now()
	items, unmatched, err := app.GroupByQuery(files, guess.Default)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("分组失败：%v", err))
	}
	groupDur := time.Since(groupStarted)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":     len(files),
			"unmatched": len(unmatched),
		}, scanDur)
		obs.OnPhaseDone("group", map[string]any{
			"queries": len(items),
		}, groupDur)
	}

	// unmatched：每个输入文件单独形成一条 item（更可解释，便于用户逐个修复）。
	for _, u := range unmatched {
		rr.Items = append(rr.Items, unmatchedItem(u))
	}

	planStarted := time.Now()
	dirs := planner.NewDirState()
	plans := make([]domain.ItemPlan, 0, len(items))
	for _, it := range items {
		pl, e := planner.PlanItem(p.Name(), langs, files, it, dirs)
		if e != nil {
			code := domain.ErrCodeIOFailed
			if fsx.IsPathTypeConflict(e) {
				code = domain.ErrCodeTargetConflict
			}
			rr.Items = append(rr.Items, failedPlanItem(p.Name(), it, files, code, fmt.Sprintf("规划失败：%v", e)))
			continue
		}
		plans = append(plans, pl)
	}
	planDur := time.Since(planStarted)

	if obs != nil {
		var needFetch, missing int
		for i := range plans {
			if plans[i].NeedFetch {
				needFetch++
			}
			for _, sc := range plans[i].Sidecars {
				if !sc.Exists {
					missing++
				}
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"items":      len(plans),
			"need_fetch": needFetch,
			"missing":    missing,
		}, planDur)
	}

	// 执行阶段：按查询并发（worker pool），item 内串行；每个 worker 独占一个 Session。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(plans),
		}, 0)
	}

	type execResult struct {
		key string
		res domain.ItemResult
		dur time.Duration
	}

	jobs := make(chan domain.ItemPlan)
	results := make(chan execResult, len(plans))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := provider.Open(p, provider.Options{ProxyURL: eff.ProxyURL, Cache: store, Log: log})
			if err != nil {
				for pl := range jobs {
					results <- execResult{key: pl.Key, res: failedPlanItem(p.Name(), domain.WorkItem{Key: pl.Key, Query: pl.Query}, files, domain.ErrCodeConfigInvalid, err.Error())}
				}
				return
			}
			defer sess.Close()

			for pl := range jobs {
				if obs != nil {
					obs.OnItemStart(pl.Key)
				}
				oneStarted := time.Now()
				r := execOne(ctx, eff, sess, pl, files, log)
				results <- execResult{key: pl.Key, res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, pl := range plans {
			jobs <- pl
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(plans), it.key, it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	if eff.Apply {
		if err := writeReport(eff.Path, rr); err != nil {
			log.WithError(err).Warn("写入 report.json 失败")
		}
	}
	return rr
}

func supportedLanguages(want, have []language.Tag) []language.Tag {
	out := make([]language.Tag, 0, len(want))
	for _, t := range want {
		if domain.ContainsLanguage(have, t) {
			out = append(out, t)
		}
	}
	return out
}

func writeReport(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return fsx.WriteState(dir, ReportName, append(b, '\n'))
}

func unmatchedItem(u domain.Unmatched) domain.ItemResult {
	item := domain.ItemResult{
		Status:    domain.StatusUnmatched,
		ErrorCode: domain.ErrCodeUnmatchedVideo,
		Files: []domain.FileResult{{
			Src:    u.File.RelPath,
			Status: domain.FileStatusFailed,
		}},
	}
	switch u.Kind {
	case videoname.KindIncomplete:
		item.ErrorMsg = "识别为剧集但缺少剧名或季号；请把文件放到 <剧名>/Season N/ 目录下，或在文件名中写明 S01E01"
	default:
		item.ErrorMsg = "无法从文件名识别出剧集或电影；请确保文件名包含类似 The.Wire.S01E01 或 Heat.1995 的片段"
	}
	return item
}

func failedPlanItem(providerName string, it domain.WorkItem, files []domain.VideoFile, code, msg string) domain.ItemResult {
	out := domain.ItemResult{
		Key:       it.Key,
		Query:     it.Query.String(),
		Provider:  providerName,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Files:     make([]domain.FileResult, 0, len(it.FileIdx)),
	}
	for _, idx := range it.FileIdx {
		if idx < 0 || idx >= len(files) {
			continue
		}
		out.Files = append(out.Files, domain.FileResult{Src: files[idx].RelPath, Status: domain.FileStatusFailed})
	}
	return out
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Files:     []domain.FileResult{},
	}
}

// download 是一次下载尝试的结果；同一 item 内按字幕 ID 复用（多个副本共享同一个字幕包）。
type download struct {
	data []byte
	err  error
}

func execOne(ctx context.Context, eff config.EffectiveConfig, sess *provider.Session, p domain.ItemPlan, files []domain.VideoFile, log logrus.FieldLogger) domain.ItemResult {
	item := domain.ItemResult{
		Key:      p.Key,
		Query:    p.Query.String(),
		Provider: p.ProviderRequested,
		Status:   domain.StatusProcessed,
		Files:    buildFileResults(eff.Path, files, p),
	}
	log = log.WithField("key", p.Key)

	if !p.NeedFetch {
		item.Status = domain.StatusSkipped
		return item
	}

	subs, err := sess.Query(ctx, p.Query)
	if err != nil {
		code, msg := classify(err)
		markPending(&item, p, domain.FileStatusFailed)
		item.Status, item.ErrorCode, item.ErrorMsg = domain.StatusFailed, code, msg
		return item
	}
	item.Candidates = len(subs)

	downloads := map[string]download{}
	for i, sc := range p.Sidecars {
		if sc.Exists {
			continue
		}
		fr := &item.Files[i]
		accepted := acceptable(subs, sc)
		if len(accepted) == 0 {
			fr.Status = domain.FileStatusNotFound
			continue
		}

		// dry-run：只选择，不下载、不落盘。
		if !eff.Apply {
			fr.Status = domain.FileStatusPlanned
			fr.Selected = selected(accepted[0])
			continue
		}

		fr.Status = domain.FileStatusFailed
		var code, msg string
		for _, r := range accepted {
			sub := r.Subtitle
			d, seen := downloads[sub.ID]
			if !seen {
				d.data, d.err = sess.DownloadSubtitle(ctx, &sub)
				downloads[sub.ID] = d
			}
			if d.err != nil {
				code, msg = classify(d.err)
				break
			}
			if d.data == nil {
				code, msg = domain.ErrCodeNoPayload, fmt.Sprintf("字幕包 %s 中没有 .srt 文件", sub.ID)
				continue
			}

			fr.Status, code, msg = writeSidecar(sc, d.data)
			if fr.Status == domain.FileStatusWritten {
				fr.Selected = selected(r)
				log.WithFields(logrus.Fields{"dst": fr.Dst, "id": sub.ID}).Info("字幕已写入")
			}
			break
		}
		if fr.Status == domain.FileStatusFailed && item.ErrorCode == "" {
			item.ErrorCode, item.ErrorMsg = code, msg
		}
	}

	item.Status = itemStatus(item)
	if item.Status == domain.StatusNotFound {
		item.ErrorCode = domain.ErrCodeNotFound
		item.ErrorMsg = fmt.Sprintf("%d 个候选中没有足够匹配的字幕", len(subs))
	}
	return item
}

// acceptable 返回 sc 语言下达到自动选用阈值的候选（按排名，至多 maxAttempts 个）。
func acceptable(subs []domain.Subtitle, sc domain.SidecarPlan) []match.Ranked {
	cands := make([]domain.Subtitle, 0, len(subs))
	for _, s := range subs {
		if domain.SameLanguage(s.Language, sc.Language) {
			cands = append(cands, s)
		}
	}
	out := make([]match.Ranked, 0, maxAttempts)
	for _, r := range match.Rank(cands, sc.Video, guess.Default, guess.EquivalentGroups) {
		if !match.Acceptable(sc.Video, r.Matches) {
			continue
		}
		out = append(out, r)
		if len(out) == maxAttempts {
			break
		}
	}
	return out
}

// writeSidecar 原子写入且不覆盖；目标在规划之后被其他进程创建时视为已满足（exists）。
func writeSidecar(sc domain.SidecarPlan, data []byte) (status, code, msg string) {
	err := fsx.WriteSidecar(filepath.Dir(sc.DstAbs), filepath.Base(sc.DstAbs), data)
	switch {
	case err == nil:
		return domain.FileStatusWritten, "", ""
	case errors.Is(err, os.ErrExist):
		return domain.FileStatusExists, "", ""
	case fsx.IsPathTypeConflict(err):
		return domain.FileStatusFailed, domain.ErrCodeTargetConflict, err.Error()
	default:
		return domain.FileStatusFailed, domain.ErrCodeIOFailed, fmt.Sprintf("写入字幕失败：%v", err)
	}
}

func itemStatus(item domain.ItemResult) string {
	var failed, notFound, exists, done int
	for _, f := range item.Files {
		switch f.Status {
		case domain.FileStatusFailed:
			failed++
		case domain.FileStatusNotFound:
			notFound++
		case domain.FileStatusExists:
			exists++
		default:
			done++
		}
	}
	switch {
	case failed > 0:
		return domain.StatusFailed
	case done > 0:
		return domain.StatusProcessed
	case notFound > 0:
		return domain.StatusNotFound
	case exists == len(item.Files):
		return domain.StatusSkipped
	default:
		return domain.StatusProcessed
	}
}

func buildFileResults(root string, files []domain.VideoFile, p domain.ItemPlan) []domain.FileResult {
	out := make([]domain.FileResult, 0, len(p.Sidecars))
	for _, sc := range p.Sidecars {
		src := ""
		if sc.FileIdx >= 0 && sc.FileIdx < len(files) {
			src = files[sc.FileIdx].RelPath
		}
		dst := sc.DstAbs
		if rel, err := filepath.Rel(root, sc.DstAbs); err == nil {
			dst = rel
		}
		status := domain.FileStatusPlanned
		if sc.Exists {
			status = domain.FileStatusExists
		}
		out = append(out, domain.FileResult{
			Src:      filepath.ToSlash(src),
			Dst:      filepath.ToSlash(dst),
			Language: domain.LanguageCode(sc.Language),
			Status:   status,
		})
	}
	return out
}

func markPending(item *domain.ItemResult, p domain.ItemPlan, status string) {
	for i, sc := range p.Sidecars {
		if !sc.Exists {
			item.Files[i].Status = status
		}
	}
}

func selected(r match.Ranked) *domain.SelectedSubtitle {
	return &domain.SelectedSubtitle{
		ID:        r.Subtitle.ID,
		Language:  domain.LanguageCode(r.Subtitle.Language),
		Title:     r.Subtitle.Title,
		Downloads: r.Subtitle.Downloads,
		PageLink:  r.Subtitle.PageLink,
		Matches:   r.Matches.Names(),
	}
}

// classify 把 provider 阶段错误映射为 error_code 与可操作的 error_msg。
func classify(err error) (code, msg string) {
	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case provider.StageFetch:
			return domain.ErrCodeFetchFailed, humanizeFetchError(pe.Provider, pe.Err)
		case provider.StageParse:
			return domain.ErrCodeParseFailed, fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非搜索结果页）：%v", pe.Provider, pe.Err)
		case provider.StageDownload:
			return domain.ErrCodeDownloadFailed, humanizeFetchError(pe.Provider, pe.Err)
		case provider.StageExtract:
			return domain.ErrCodeArchiveInvalid, fmt.Sprintf("%s 字幕包无法解压：%v", pe.Provider, pe.Err)
		}
	}
	if errors.Is(err, zipx.ErrMalformed) {
		return domain.ErrCodeArchiveInvalid, err.Error()
	}
	return domain.ErrCodeFetchFailed, err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 请求失败"
	}

	// HTTP 非 2xx：尽量给出可操作提示（限流/下架是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发限流）。建议降低并发或配置 proxy.url。", providerName, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（字幕可能已下架）。", providerName)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 请求超时。建议检查网络/代理，或降低并发后重试。", providerName)
	}
	return fmt.Sprintf("%s 请求失败：%v", providerName, err)
}
