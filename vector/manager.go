package vector

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rushteam/bookrec/core"
)

// DefaultMaxResident 是默认的常驻语言索引数上限。
const DefaultMaxResident = 8

// BuildFunc 是语言索引的构建回调，由上层注册
// （通常是：目录取该语言全量语料 → 特征管线向量化 → Build）。
type BuildFunc func(ctx context.Context, language string) (*LanguageIndex, error)

// Manager 按语言持有向量索引：
//   - 首次查询时惰性构建，singleflight 防止并发重复构建
//   - 换入采用整体原子替换，重建失败时继续服务旧索引（last-known-good）
//   - 常驻语言数超过上限时按最近使用时间淘汰
type Manager struct {
	// MaxResident 常驻语言索引上限，零值走默认值
	MaxResident int

	builder BuildFunc

	mu      sync.Mutex
	entries map[string]*managerEntry
	sf      singleflight.Group
}

type managerEntry struct {
	snap     core.Snapshot[LanguageIndex]
	lastUsed time.Time
}

func NewManager(builder BuildFunc) *Manager {
	return &Manager{
		builder: builder,
		entries: make(map[string]*managerEntry),
	}
}

func (m *Manager) maxResident() int {
	if m.MaxResident > 0 {
		return m.MaxResident
	}
	return DefaultMaxResident
}

// Get 返回某语言的当前索引，不存在时惰性构建。
// 构建失败且没有历史版本时错误向上返回（由编排层降级到热门分支）。
func (m *Manager) Get(ctx context.Context, language string) (*LanguageIndex, error) {
	m.mu.Lock()
	e, ok := m.entries[language]
	if ok {
		e.lastUsed = time.Now()
		if idx := e.snap.Load(); idx != nil {
			m.mu.Unlock()
			return idx, nil
		}
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do("build:"+language, func() (any, error) {
		return m.buildAndStore(ctx, language)
	})
	if err != nil {
		return nil, err
	}
	return v.(*LanguageIndex), nil
}

// Refresh 重建某语言索引并原子换入；失败保留旧版本并返回错误。
func (m *Manager) Refresh(ctx context.Context, language string) error {
	_, err, _ := m.sf.Do("refresh:"+language, func() (any, error) {
		idx, err := m.builder(ctx, language)
		if err != nil {
			return nil, err
		}
		m.store(language, idx)
		return idx, nil
	})
	return err
}

func (m *Manager) buildAndStore(ctx context.Context, language string) (*LanguageIndex, error) {
	idx, err := m.builder(ctx, language)
	if err != nil {
		// 有旧版本就继续用旧版本
		if old := m.lookup(language); old != nil {
			return old, nil
		}
		return nil, err
	}
	m.store(language, idx)
	return idx, nil
}

func (m *Manager) store(language string, idx *LanguageIndex) {
	m.mu.Lock()
	e, ok := m.entries[language]
	if !ok {
		e = &managerEntry{}
		m.entries[language] = e
	}
	e.snap.Swap(idx)
	e.lastUsed = time.Now()
	m.evictLocked()
	m.mu.Unlock()
}

func (m *Manager) lookup(language string) *LanguageIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[language]; ok {
		return e.snap.Load()
	}
	return nil
}

// Languages 返回当前常驻的语言集合（健康检查用）。
func (m *Manager) Languages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for lang := range m.entries {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// evictLocked 淘汰最久未使用的语言，直到常驻数回到上限内。
func (m *Manager) evictLocked() {
	for len(m.entries) > m.maxResident() {
		var oldest string
		var oldestAt time.Time
		for lang, e := range m.entries {
			if oldest == "" || e.lastUsed.Before(oldestAt) {
				oldest, oldestAt = lang, e.lastUsed
			}
		}
		delete(m.entries, oldest)
	}
}
