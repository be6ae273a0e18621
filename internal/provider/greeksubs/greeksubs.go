// Package greeksubs 实现 greek-subtitles.com 的搜索页抓取、解析与字幕包下载。
package greeksubs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/infra/logx"
	providerx "github.com/John-Robertt/subfetch/internal/provider"
)

const (
	Name = "greeksubs"

	DefaultSearchBaseURL   = "http://www.greek-subtitles.com"
	DefaultDownloadBaseURL = "http://www.greeksubtitles.info"

	// 每条记录占 4 个 td.result_top_k：标题（含旗帜与链接）、上传者、日期、下载数。
	chunkSize = 4
	// 结果表末尾固定有 4 个同 class 的分页/页脚单元格。
	footerCells = 4

	// 下载响应体上限；正常字幕包只有几十 KB。
	maxPayload = 16 << 20
)

var idRE = regexp.MustCompile(`get_greek_subtitles\.php\?id=(\d+)`)

var _ providerx.Provider = Provider{}

// Provider 实现 greeksubs 站点。
//
// 约束：
// - 只产出希腊语与英语字幕
// - Fetch/Download 不做缓存/重试/限速（由上层统一控制）
// - Parse 是纯函数；单条记录异常只记 Warn 并跳过，不影响整页
type Provider struct {
	// SearchBaseURL 是搜索页与字幕详情页所在站点；为空时使用 DefaultSearchBaseURL。
	SearchBaseURL string
	// DownloadBaseURL 是字幕包下载站点；为空时使用 DefaultDownloadBaseURL。
	DownloadBaseURL string

	Log logrus.FieldLogger
}

func (Provider) Name() string { return Name }

func (Provider) Languages() []language.Tag { return []language.Tag{domain.Greek, domain.English} }

func (p Provider) searchBase() string   { return trimBase(p.SearchBaseURL, DefaultSearchBaseURL) }
func (p Provider) downloadBase() string { return trimBase(p.DownloadBaseURL, DefaultDownloadBaseURL) }

func trimBase(u, def string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return def
	}
	return strings.TrimRight(u, "/")
}

// SearchURL 返回 q 的搜索页：{search}/search.php?name=The+Wire+S01E01
func (p Provider) SearchURL(q domain.Query) string {
	return p.searchBase() + "/search.php?" + url.Values{"name": {q.String()}}.Encode()
}

// PageLink 返回字幕详情页（给人看的链接）。
func (p Provider) PageLink(id string) string {
	return p.searchBase() + "/get_greek_subtitles.php?id=" + id
}

// DownloadURL 返回字幕包（zip）下载地址。
func (p Provider) DownloadURL(id string) string {
	return p.downloadBase() + "/getp.php?id=" + id
}

// Fetch 抓取 q 的搜索结果页，返回原始 HTML 与页面 URL；非 2xx 返回 *provider.HTTPStatusError。
func (p Provider) Fetch(ctx context.Context, q domain.Query, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	if strings.TrimSpace(q.String()) == "" {
		return nil, "", errors.New("query 不能为空")
	}
	u := p.SearchURL(q)
	b, err := get(ctx, c, u, "")
	return b, u, err
}

// Parse 把搜索结果页解析为候选字幕；零条合法记录返回空切片（非 nil），不报错。
func (p Provider) Parse(q domain.Query, html []byte, pageURL string) ([]domain.Subtitle, error) {
	out := []domain.Subtitle{}
	if len(bytes.TrimSpace(html)) == 0 {
		return out, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	log := logx.OrDiscard(p.Log).WithFields(logrus.Fields{"provider": Name, "query": q.String()})

	cells := doc.Find("td.result_top_k")
	n := cells.Length() - footerCells
	if n <= 0 {
		return out, nil
	}
	if rem := n % chunkSize; rem != 0 {
		log.WithFields(logrus.Fields{"chunk": n / chunkSize, "reason": "incomplete"}).
			Warnf("结果表末尾有 %d 个不成组的单元格，已忽略", rem)
	}

	for i := 0; i+chunkSize <= n; i += chunkSize {
		sub, reason := p.parseChunk(cells.Eq(i), cells.Eq(i+chunkSize-1))
		if reason != "" {
			log.WithFields(logrus.Fields{"chunk": i / chunkSize, "reason": reason}).Warn("跳过无法解析的字幕记录")
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// parseChunk 从记录的首/尾单元格读取字段；失败时返回非空 reason。
func (p Provider) parseChunk(head, tail *goquery.Selection) (domain.Subtitle, string) {
	lang, ok := flagLanguage(head)
	if !ok {
		return domain.Subtitle{}, "unknown_language"
	}

	id := ""
	head.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := idRE.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id == "" {
		return domain.Subtitle{}, "missing_id"
	}

	downloads, ok := parseCount(tail.Text())
	if !ok {
		return domain.Subtitle{}, "bad_downloads"
	}

	return domain.Subtitle{
		Provider:  Name,
		Language:  lang,
		ID:        id,
		Title:     normSpace(head.Text()),
		Downloads: downloads,
		PageLink:  p.PageLink(id),
	}, ""
}

// flagLanguage 按旗帜图标文件名（el.gif / en.gif）判断语言，只看 <img src> 的 basename。
func flagLanguage(s *goquery.Selection) (language.Tag, bool) {
	var (
		tag   language.Tag
		found bool
	)
	s.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		switch strings.ToLower(iconName(src)) {
		case "el.gif":
			tag, found = domain.Greek, true
		case "en.gif":
			tag, found = domain.English, true
		}
		return !found
	})
	return tag, found
}

func iconName(src string) string {
	src = strings.TrimSpace(src)
	if u, err := url.Parse(src); err == nil {
		src = u.Path
	}
	return path.Base(src)
}

// parseCount 解析下载数；允许千分位分隔符（"1,234" / "1.234"）。
func parseCount(s string) (int, bool) {
	s = strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Download 下载字幕包原始字节（zip）；非 2xx 返回 *provider.HTTPStatusError，不重试。
func (p Provider) Download(ctx context.Context, sub domain.Subtitle, c *http.Client) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if !isDigits(sub.ID) {
		return nil, fmt.Errorf("非法字幕 ID：%q", sub.ID)
	}
	referer := sub.PageLink
	if referer == "" {
		referer = p.PageLink(sub.ID)
	}
	return get(ctx, c, p.DownloadURL(sub.ID), referer)
}

func get(ctx context.Context, c *http.Client, u, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxPayload {
		return nil, fmt.Errorf("响应超过 %d 字节：%s", maxPayload, u)
	}
	return b, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
