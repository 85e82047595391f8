// Package cache 实现结果缓存：TTL 分级、singleflight 合并回源、
// 按用户整组失效。后端故障一律按 miss 处理，缓存永远不是错误来源。
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/rushteam/bookrec/core"
)

// Class 是缓存条目的 TTL 档位。
type Class string

const (
	// ClassRecommendations 推荐结果，30 分钟
	ClassRecommendations Class = "recommendations"
	// ClassPreferences 用户语言偏好等画像衍生物，10 分钟
	ClassPreferences Class = "preferences"
	// ClassArtifacts 模型/索引衍生的重量级制品，7 天
	ClassArtifacts Class = "artifacts"
	// ClassStatic 不随训练变化的静态数据，不过期
	ClassStatic Class = "static"
)

// TTLSeconds 返回档位的过期秒数，0 表示不过期。
func (c Class) TTLSeconds() int {
	switch c {
	case ClassRecommendations:
		return 1800
	case ClassPreferences:
		return 600
	case ClassArtifacts:
		return 7 * 24 * 3600
	case ClassStatic:
		return 0
	default:
		return 1800
	}
}

// Stats 是缓存的累计计数（健康检查用）。
type Stats struct {
	Hits          int64
	Misses        int64
	Errors        int64
	Invalidations int64
}

// Cache 把任意 Store 包装成结果缓存。
//
// 失效模型：
//   - 用户级：每个用户的缓存 key 记在 userkeys:<id> 集合里
//     （KeyValueStore 用 SAdd/SMembers，普通 Store 退回进程内索引），
//     Invalidate 逐个删除
//   - 全局：epoch 计数拼进存储 key，InvalidateAll 自增 epoch，
//     旧世代条目直接不可达，由 TTL 自然回收
type Cache struct {
	store core.Store

	epoch atomic.Int64
	sf    singleflight.Group

	hits          atomic.Int64
	misses        atomic.Int64
	errors        atomic.Int64
	invalidations atomic.Int64

	mu        sync.Mutex
	localKeys map[string]map[string]struct{} // 非 KV 后端的用户 key 索引
}

func New(store core.Store) *Cache {
	return &Cache{
		store:     store,
		localKeys: make(map[string]map[string]struct{}),
	}
}

// GetOrCompute 读取缓存；miss/过期/后端故障时在 singleflight 保护下
// 执行 compute，成功则写回。compute 的错误原样返回，不落缓存。
func (c *Cache) GetOrCompute(ctx context.Context, key string, class Class, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	sk := c.storageKey(key)

	if data, err := c.store.Get(ctx, sk); err == nil {
		c.hits.Add(1)
		return data, nil
	} else if !core.IsStoreNotFound(err) {
		c.errors.Add(1)
	}
	c.misses.Add(1)

	v, err, _ := c.sf.Do(sk, func() (any, error) {
		// 合并窗口内可能已有并发请求回填
		if data, err := c.store.Get(ctx, sk); err == nil {
			return data, nil
		}
		data, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, sk, data, class.TTLSeconds()); err != nil {
			c.errors.Add(1) // 写失败只记数，结果照常返回
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetOrComputeUser 与 GetOrCompute 相同，另把 key 登记到用户的
// 失效索引里，供 Invalidate(userID) 整组删除。
func (c *Cache) GetOrComputeUser(ctx context.Context, userID, key string, class Class, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	data, err := c.GetOrCompute(ctx, key, class, compute)
	if err != nil {
		return nil, err
	}
	c.trackUserKey(ctx, userID, c.storageKey(key))
	return data, nil
}

// Invalidate 删除某个用户的全部个性化缓存条目。
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	c.invalidations.Add(1)
	setKey := c.userSetKey(userID)

	var keys []string
	if kv, ok := c.store.(core.KeyValueStore); ok {
		members, err := kv.SMembers(ctx, setKey)
		if err != nil {
			c.errors.Add(1)
			return nil // 后端故障：下一次读自然 miss（epoch 不动，条目随 TTL 过期）
		}
		keys = members
	} else {
		c.mu.Lock()
		for k := range c.localKeys[userID] {
			keys = append(keys, k)
		}
		delete(c.localKeys, userID)
		c.mu.Unlock()
	}

	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			c.errors.Add(1)
		}
	}
	if err := c.store.Delete(ctx, setKey); err != nil {
		c.errors.Add(1)
	}
	return nil
}

// InvalidateAll 使全部缓存条目失效（重训后调用）。
func (c *Cache) InvalidateAll() {
	c.invalidations.Add(1)
	c.epoch.Add(1)
	c.mu.Lock()
	c.localKeys = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// Stats 返回累计计数快照。
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Errors:        c.errors.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

func (c *Cache) storageKey(key string) string {
	return fmt.Sprintf("c%d:%s", c.epoch.Load(), key)
}

func (c *Cache) userSetKey(userID string) string {
	return fmt.Sprintf("userkeys:%s", userID)
}

func (c *Cache) trackUserKey(ctx context.Context, userID, storageKey string) {
	if userID == "" {
		return
	}
	if kv, ok := c.store.(core.KeyValueStore); ok {
		if err := kv.SAdd(ctx, c.userSetKey(userID), storageKey); err != nil {
			c.errors.Add(1)
		}
		return
	}
	c.mu.Lock()
	if c.localKeys[userID] == nil {
		c.localKeys[userID] = make(map[string]struct{})
	}
	c.localKeys[userID][storageKey] = struct{}{}
	c.mu.Unlock()
}
