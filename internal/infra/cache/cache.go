package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/subfetch/internal/infra/fsx"
)

// DefaultTTL 是搜索结果页的默认过期时间（剧集字幕在首播后几天内变化最多）。
const DefaultTTL = 72 * time.Hour

// Store 提供 <path>/cache/ 下的搜索结果页缓存。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
// - 过期条目视为未命中，不主动删除
type Store struct {
	Root     string // <path>（扫描根目录）
	ReadOnly bool
	TTL      time.Duration // <=0 表示 DefaultTTL

	now func() time.Time
}

var ErrReadOnly = errors.New("cache: read-only")

// New 返回以 root 为扫描根目录的 Store；ttl<=0 时使用 DefaultTTL。
func New(root string, readOnly bool, ttl time.Duration) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
		TTL:      ttl,
	}
}

// entry 是磁盘上的缓存格式。
type entry struct {
	StoredAt time.Time `json:"stored_at"`
	PageURL  string    `json:"page_url"`
	HTML     string    `json:"html"`
}

// ListingPath 返回 (provider, key) 对应缓存文件的绝对路径。
func (s Store) ListingPath(provider, key string) (string, error) {
	p, err := cleanName(provider)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "listings", p, k+".json"), nil
}

// ReadListing 读取未过期的缓存页；未命中/已过期返回 ok=false。
func (s Store) ReadListing(provider, key string) (html []byte, pageURL string, ok bool, err error) {
	path, err := s.ListingPath(provider, key)
	if err != nil {
		return nil, "", false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		// 损坏的缓存视为未命中：下一次写入会覆盖它。
		return nil, "", false, nil
	}
	if s.clock().Sub(e.StoredAt) >= s.ttl() {
		return nil, "", false, nil
	}
	return []byte(e.HTML), e.PageURL, true, nil
}

// WriteListing 原子写入一条缓存（覆盖旧条目）；ReadOnly 时返回 ErrReadOnly。
func (s Store) WriteListing(provider, key string, html []byte, pageURL string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.ListingPath(provider, key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(entry{StoredAt: s.clock().UTC(), PageURL: pageURL, HTML: string(html)})
	if err != nil {
		return err
	}
	return fsx.WriteState(filepath.Dir(path), filepath.Base(path), b)
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

var (
	nameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	keyRE  = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)
)

func cleanName(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	if !nameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}

// key 由 domain.Query.Key 生成；这里只做防路径穿越的校验。
func cleanKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", fmt.Errorf("cache key 不能为空")
	}
	if !keyRE.MatchString(k) {
		return "", fmt.Errorf("非法 cache key：%q", k)
	}
	return k, nil
}
