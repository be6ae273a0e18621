package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/infra/cache"
	"github.com/John-Robertt/subfetch/internal/infra/httpx"
	"github.com/John-Robertt/subfetch/internal/infra/logx"
	"github.com/John-Robertt/subfetch/internal/infra/zipx"
)

var (
	ErrClosed       = errors.New("provider session 已关闭")
	ErrInvalidQuery = errors.New("查询条件不完整")
)

// ListingCache 是搜索结果页缓存（按 provider + Query.Key 索引，过期策略由实现决定）。
// cache.Store 满足该接口。
type ListingCache interface {
	ReadListing(provider, key string) (html []byte, pageURL string, ok bool, err error)
	WriteListing(provider, key string, html []byte, pageURL string) error
}

type Options struct {
	// Client 为空时按 ProxyURL 新建（推荐：每个 Session 独占一个 client）。
	Client   *http.Client
	ProxyURL string

	Cache ListingCache // 可为空
	Log   logrus.FieldLogger
}

// Session 是一个 provider 的使用周期：Open 获取网络会话，Close 释放。
//
// 约束：
// - Session 不做并发保护；并行处理多个视频时每个 worker 各自 Open
// - Close 之后所有方法返回 ErrClosed
type Session struct {
	p      Provider
	client *http.Client
	cache  ListingCache
	log    logrus.FieldLogger
	closed bool
}

// Open 为 p 打开一个 Session；opts.Client 为空时按 opts.ProxyURL 新建 client（代理地址非法时报错）。
func Open(p Provider, opts Options) (*Session, error) {
	if p == nil {
		return nil, errors.New("provider 不能为空")
	}
	c := opts.Client
	if c == nil {
		var err error
		c, err = httpx.NewClient(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	return &Session{
		p:      p,
		client: c,
		cache:  opts.Cache,
		log:    logx.OrDiscard(opts.Log).WithField("provider", p.Name()),
	}, nil
}

// Provider 返回该 Session 所属的 provider。
func (s *Session) Provider() Provider { return s.p }

// Close 释放空闲连接。重复调用是安全的。
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

// ValidateQuery 检查查询是否足以拼出搜索文本：剧集需要 season/episode，电影需要 title。
func ValidateQuery(q domain.Query) error {
	if q.IsEpisode() {
		if q.Season <= 0 || q.Episode <= 0 {
			return fmt.Errorf("%w：%q 缺少季/集号", ErrInvalidQuery, q.Series)
		}
		return nil
	}
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w：缺少剧名或片名", ErrInvalidQuery)
	}
	return nil
}

// Query 返回 q 的全部候选字幕（不做语言过滤）。
//
// 先查缓存；未命中时抓取并写回缓存（只读缓存静默跳过写入）。
// 相同 q => 相同结果，因此缓存与否不影响语义。
func (s *Session) Query(ctx context.Context, q domain.Query) ([]domain.Subtitle, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	name := s.p.Name()
	key := q.Key()
	log := s.log.WithField("query", q.String())

	if s.cache != nil {
		html, pageURL, ok, err := s.cache.ReadListing(name, key)
		switch {
		case err != nil:
			log.WithError(err).Warn("读取 listing 缓存失败")
		case ok:
			subs, perr := s.p.Parse(q, html, pageURL)
			if perr == nil {
				log.WithField("candidates", len(subs)).Debug("listing 命中缓存")
				return subs, nil
			}
			log.WithError(perr).Warn("缓存的 listing 无法解析，重新抓取")
		}
	}

	html, pageURL, err := s.p.Fetch(ctx, q, s.client)
	if err != nil {
		return nil, &Error{Provider: name, Stage: StageFetch, Err: err}
	}
	subs, err := s.p.Parse(q, html, pageURL)
	if err != nil {
		return nil, &Error{Provider: name, Stage: StageParse, Err: err}
	}
	log.WithField("candidates", len(subs)).Debug("listing 已抓取")

	if s.cache != nil {
		if err := s.cache.WriteListing(name, key, html, pageURL); err != nil && !errors.Is(err, cache.ErrReadOnly) {
			log.WithError(err).Warn("写入 listing 缓存失败")
		}
	}
	return subs, nil
}

// ListSubtitles 查询 v 的候选字幕，并只保留 langs 中的语言（顺序保持站点原序）。
// langs 为空表示接受 provider 支持的全部语言。
func (s *Session) ListSubtitles(ctx context.Context, v domain.Video, langs []language.Tag) ([]domain.Subtitle, error) {
	all, err := s.Query(ctx, v.Query())
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		langs = s.p.Languages()
	}
	out := make([]domain.Subtitle, 0, len(all))
	for _, sub := range all {
		if domain.ContainsLanguage(langs, sub.Language) {
			out = append(out, sub)
		}
	}
	return out, nil
}

// DownloadSubtitle 下载并解压 sub 的字幕包，把第一个 .srt 写入 sub 的 content。
//
// 返回值：
// - 字幕内容（换行已统一）
// - (nil, nil)：压缩包中没有 .srt（“无可用载荷”，不是错误；content 保持未设置）
// - 非 2xx => Stage=download；坏压缩包 => Stage=extract（errors.Is(err, zipx.ErrMalformed)）
func (s *Session) DownloadSubtitle(ctx context.Context, sub *domain.Subtitle) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if sub == nil {
		return nil, errors.New("subtitle 不能为空")
	}
	if sub.HasContent() {
		return sub.Content(), nil
	}
	name := s.p.Name()

	payload, err := s.p.Download(ctx, *sub, s.client)
	if err != nil {
		return nil, &Error{Provider: name, Stage: StageDownload, Err: err}
	}
	b, err := zipx.FirstSubtitle(payload, SubtitleExt)
	if err != nil {
		return nil, &Error{Provider: name, Stage: StageExtract, Err: err}
	}
	if b == nil {
		s.log.WithField("id", sub.ID).Info("字幕包中没有 .srt 文件")
		return nil, nil
	}
	if err := sub.SetContent(b); err != nil {
		return nil, err
	}
	return sub.Content(), nil
}
