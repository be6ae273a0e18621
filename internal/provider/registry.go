package provider

import (
	"fmt"
	"sort"
	"strings"
)

// Registry 是 provider 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Provider
}

// NewRegistry 按小写 name 注册 providers；空 name 或重名时报错。
func NewRegistry(providers ...Provider) (Registry, error) {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = p
	}
	return Registry{byName: byName}, nil
}

// Get 按 name（大小写与首尾空白不敏感）查找 provider。
func (r Registry) Get(name string) (Provider, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := r.byName[name]
	return p, ok
}

// Names 返回已注册的 provider 名（排序后，用于错误提示）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
