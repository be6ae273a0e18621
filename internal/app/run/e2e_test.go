package run

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/provider"
	"github.com/John-Robertt/subfetch/internal/provider/greeksubs"
)

type record struct {
	flag      string
	id        string
	title     string
	downloads string
}

// site 是一个最小的 greeksubs 站点替身：search.php 返回结果表，getp.php 返回 zip。
type site struct {
	records  []record
	archives map[string][]byte

	searchStatus int
	searches     atomic.Int32
	downloads    atomic.Int32
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/search.php":
		s.searches.Add(1)
		if s.searchStatus != 0 {
			w.WriteHeader(s.searchStatus)
			return
		}
		var b strings.Builder
		b.WriteString("<html><body><table>")
		for _, rec := range s.records {
			fmt.Fprintf(&b, `<tr><td class="result_top_k"><img src="/images/flags/%s"><a href="http://www.greeksubtitles.info/get_greek_subtitles.php?id=%s">%s</a></td>`, rec.flag, rec.id, rec.title)
			fmt.Fprintf(&b, `<td class="result_top_k">u</td><td class="result_top_k">01/01/2010</td><td class="result_top_k">%s</td></tr>`, rec.downloads)
		}
		b.WriteString(`<tr><td class="result_top_k">1</td><td class="result_top_k">2</td><td class="result_top_k">3</td><td class="result_top_k">4</td></tr>`)
		b.WriteString("</table></body></html>")
		_, _ = w.Write([]byte(b.String()))
	case "/getp.php":
		s.downloads.Add(1)
		b, ok := s.archives[r.URL.Query().Get("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(b)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func wireSite(t *testing.T) *site {
	t.Helper()
	return &site{
		records: []record{
			{flag: "el.gif", id: "1234", title: "The.Wire.S01E01.720p.HDTV.x264-AFG", downloads: "1520"},
			{flag: "en.gif", id: "1235", title: "The.Wire.S01E01.DVDRip.XviD-LOL", downloads: "875"},
			{flag: "en.gif", id: "1238", title: "The.Wire.S01E01.HDTV.XviD-NoTV", downloads: "40"},
			{flag: "el.gif", id: "1300", title: "The.Wire.S02E05.HDTV.XviD-LOL", downloads: "9000"},
		},
		archives: map[string][]byte{
			"1234": zipOf(t, map[string]string{"The.Wire.S01E01.el.srt": "1\r\n00:00:01,000 --> 00:00:02,000\r\nΓεια\r\n"}),
			"1235": zipOf(t, map[string]string{"readme.txt": "no srt here"}),
			"1238": zipOf(t, map[string]string{"sub/The.Wire.S01E01.SRT": "1\n00:00:01,000 --> 00:00:02,000\nHi\n"}),
		},
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("创建 zip 条目失败：%v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("写入 zip 条目失败：%v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭 zip 失败：%v", err)
	}
	return buf.Bytes()
}

func setup(t *testing.T, s *site) (string, provider.Registry) {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	root := t.TempDir()
	writeVideo(t, filepath.Join(root, "The Wire", "Season 1", "The.Wire.S01E01.720p.HDTV.x264-AFG.mkv"))

	reg, err := provider.NewRegistry(greeksubs.Provider{SearchBaseURL: srv.URL, DownloadBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return root, reg
}

func effConfig(root string, apply bool) config.EffectiveConfig {
	return config.EffectiveConfig{
		Path:        root,
		Provider:    greeksubs.Name,
		Languages:   []language.Tag{domain.Greek, domain.English},
		Apply:       apply,
		Concurrency: 2,
	}
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	s := wireSite(t)
	root, reg := setup(t, s)

	rr := Execute(context.Background(), effConfig(root, false), reg)

	if !rr.DryRun {
		t.Fatalf("期望 dry_run=true")
	}
	if len(rr.Items) != 1 {
		t.Fatalf("期望 1 个 item，实际 %d：%+v", len(rr.Items), rr.Items)
	}
	it := rr.Items[0]
	if it.Status != domain.StatusProcessed || it.Key != "the-wire_s01e01" || it.Candidates != 4 {
		t.Fatalf("item 不符合预期：%+v", it)
	}
	if len(it.Files) != 2 {
		t.Fatalf("期望 2 个 sidecar，实际 %d", len(it.Files))
	}
	el, en := it.Files[0], it.Files[1]
	if el.Status != domain.FileStatusPlanned || el.Selected == nil || el.Selected.ID != "1234" {
		t.Fatalf("el 选择不符合预期：%+v", el)
	}
	if el.Dst != "The Wire/Season 1/The.Wire.S01E01.720p.HDTV.x264-AFG.el.srt" {
		t.Fatalf("el dst 不符合预期：%q", el.Dst)
	}
	if en.Status != domain.FileStatusPlanned || en.Selected == nil || en.Selected.ID != "1235" {
		t.Fatalf("en 选择不符合预期：%+v", en)
	}
	if s.downloads.Load() != 0 {
		t.Fatalf("dry-run 不应下载字幕包")
	}

	// dry-run 禁止任何写入：cache 目录与 sidecar 都不应出现。
	if _, err := os.Stat(filepath.Join(root, "cache")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 cache 目录：err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "The Wire", "Season 1", "The.Wire.S01E01.720p.HDTV.x264-AFG.el.srt")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应写入字幕：err=%v", err)
	}
}

func TestExecute_Apply_WritesSidecarsAndReport(t *testing.T) {
	s := wireSite(t)
	root, reg := setup(t, s)
	dir := filepath.Join(root, "The Wire", "Season 1")

	rr := Execute(context.Background(), effConfig(root, true), reg)

	if len(rr.Items) != 1 || rr.Items[0].Status != domain.StatusProcessed {
		t.Fatalf("item 不符合预期：%+v", rr.Items)
	}
	files := rr.Items[0].Files
	if files[0].Status != domain.FileStatusWritten || files[1].Status != domain.FileStatusWritten {
		t.Fatalf("期望两个 sidecar 都写入：%+v", files)
	}
	// en 的第一候选（1235）没有 .srt，应回退到 1238。
	if files[1].Selected == nil || files[1].Selected.ID != "1238" {
		t.Fatalf("期望 en 回退到 1238：%+v", files[1].Selected)
	}

	b, err := os.ReadFile(filepath.Join(dir, "The.Wire.S01E01.720p.HDTV.x264-AFG.el.srt"))
	if err != nil {
		t.Fatalf("读取 el 字幕失败：%v", err)
	}
	if string(b) != "1\n00:00:01,000 --> 00:00:02,000\nΓεια\n" {
		t.Fatalf("el 字幕内容不符合预期（换行应统一为 LF）：%q", b)
	}
	if _, err := os.Stat(filepath.Join(dir, "The.Wire.S01E01.720p.HDTV.x264-AFG.en.srt")); err != nil {
		t.Fatalf("en 字幕应存在：%v", err)
	}

	rb, err := os.ReadFile(filepath.Join(root, "cache", ReportName))
	if err != nil {
		t.Fatalf("report.json 应存在：%v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(rb, &got); err != nil {
		t.Fatalf("report.json 不是合法 JSON：%v", err)
	}
	if got["dry_run"] != false {
		t.Fatalf("report.json dry_run 不符合预期：%v", got["dry_run"])
	}

	// 第二次运行：sidecar 已齐全，不应再访问站点。
	searches := s.searches.Load()
	rr2 := Execute(context.Background(), effConfig(root, true), reg)
	if len(rr2.Items) != 1 || rr2.Items[0].Status != domain.StatusSkipped {
		t.Fatalf("期望第二次运行 skipped：%+v", rr2.Items)
	}
	if s.searches.Load() != searches {
		t.Fatalf("sidecar 齐全时不应再搜索")
	}
}

func TestExecute_Apply_ListingCacheServesCopies(t *testing.T) {
	s := wireSite(t)
	root, reg := setup(t, s)
	// 同一集的第二个副本：与第一个副本合并为一次查询。
	writeVideo(t, filepath.Join(root, "dl", "the.wire.s01e01.dvdrip.xvid-lol.avi"))

	rr := Execute(context.Background(), effConfig(root, true), reg)
	if len(rr.Items) != 1 {
		t.Fatalf("期望两个副本合并为 1 个 item：%+v", rr.Items)
	}
	if n := s.searches.Load(); n != 1 {
		t.Fatalf("期望只搜索 1 次，实际 %d", n)
	}
	if len(rr.Items[0].Files) != 4 {
		t.Fatalf("期望 4 个 sidecar（2 文件 × 2 语言），实际 %d", len(rr.Items[0].Files))
	}

	// listing 已写入缓存：删除 sidecar 后再次运行不再访问站点。
	for _, f := range rr.Items[0].Files {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(f.Dst))); err != nil {
			t.Fatalf("删除 sidecar 失败：%v", err)
		}
	}
	_ = Execute(context.Background(), effConfig(root, true), reg)
	if n := s.searches.Load(); n != 1 {
		t.Fatalf("期望命中 listing 缓存，实际搜索 %d 次", n)
	}
}

func TestExecute_FetchFailed(t *testing.T) {
	s := wireSite(t)
	s.searchStatus = http.StatusServiceUnavailable
	root, reg := setup(t, s)

	rr := Execute(context.Background(), effConfig(root, true), reg)
	if len(rr.Items) != 1 {
		t.Fatalf("期望 1 个 item：%+v", rr.Items)
	}
	it := rr.Items[0]
	if it.Status != domain.StatusFailed || it.ErrorCode != domain.ErrCodeFetchFailed {
		t.Fatalf("期望 fetch_failed：%+v", it)
	}
	if !strings.Contains(it.ErrorMsg, "503") {
		t.Fatalf("error_msg 应包含状态码：%q", it.ErrorMsg)
	}
	for _, f := range it.Files {
		if f.Status != domain.FileStatusFailed {
			t.Fatalf("期望文件状态 failed：%+v", f)
		}
	}
	if rr.Summary.Failed != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestExecute_NotFound(t *testing.T) {
	s := wireSite(t)
	s.records = s.records[3:] // 只剩 S02E05
	root, reg := setup(t, s)

	rr := Execute(context.Background(), effConfig(root, false), reg)
	it := rr.Items[0]
	if it.Status != domain.StatusNotFound || it.ErrorCode != domain.ErrCodeNotFound {
		t.Fatalf("期望 not_found：%+v", it)
	}
	if rr.Summary.NotFound != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestExecute_Apply_NoPayload(t *testing.T) {
	s := wireSite(t)
	s.records = s.records[1:2] // 只剩 1235（zip 中没有 .srt）
	root, reg := setup(t, s)
	eff := effConfig(root, true)
	eff.Languages = []language.Tag{domain.English}

	rr := Execute(context.Background(), eff, reg)
	it := rr.Items[0]
	if it.Status != domain.StatusFailed || it.ErrorCode != domain.ErrCodeNoPayload {
		t.Fatalf("期望 no_payload：%+v", it)
	}
}

func TestExecute_ExistingSidecarIsKept(t *testing.T) {
	s := wireSite(t)
	root, reg := setup(t, s)
	existing := filepath.Join(root, "The Wire", "Season 1", "The.Wire.S01E01.720p.HDTV.x264-AFG.el.srt")
	if err := os.WriteFile(existing, []byte("mine"), 0o644); err != nil {
		t.Fatalf("写入已有字幕失败：%v", err)
	}

	rr := Execute(context.Background(), effConfig(root, true), reg)
	files := rr.Items[0].Files
	if files[0].Status != domain.FileStatusExists || files[1].Status != domain.FileStatusWritten {
		t.Fatalf("文件状态不符合预期：%+v", files)
	}
	b, _ := os.ReadFile(existing)
	if string(b) != "mine" {
		t.Fatalf("已有字幕不应被覆盖：%q", b)
	}
}

func TestExecute_UnsupportedLanguages(t *testing.T) {
	root, reg := setup(t, wireSite(t))
	eff := effConfig(root, false)
	eff.Languages = []language.Tag{language.French}

	rr := Execute(context.Background(), eff, reg)
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != domain.ErrCodeConfigInvalid {
		t.Fatalf("期望 config_invalid：%+v", rr.Items)
	}
}

func writeVideo(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入视频失败：%v", err)
	}
}
