package filter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rushteam/bookrec/core"
)

// 已曝光过滤默认参数。
const (
	DefaultSurfacedWindow = 3600 // 秒
	surfacedKeyPrefix     = "surfaced"
)

// surfacedBatch 是一次成功推荐后记录的曝光批次。
type surfacedBatch struct {
	At  int64    `json:"at"` // unix 秒
	IDs []string `json:"ids"`
}

// Surfaced 过滤时间窗口内已经推给用户的书，避免相邻请求重复出书。
// 曝光批次存在 KV 后端（key: surfaced:<userID>），读写失败都按放行处理，
// 存储故障不应让推荐请求失败。
type Surfaced struct {
	Store core.Store
	// WindowSeconds 曝光记忆窗口，零值走默认值
	WindowSeconds int64

	mu     sync.RWMutex
	recent map[string]map[string]struct{}
}

func NewSurfaced(store core.Store) *Surfaced {
	return &Surfaced{
		Store:  store,
		recent: make(map[string]map[string]struct{}),
	}
}

func (f *Surfaced) Name() string { return "filter.surfaced" }

func (f *Surfaced) window() int64 {
	if f.WindowSeconds > 0 {
		return f.WindowSeconds
	}
	return DefaultSurfacedWindow
}

func (f *Surfaced) key(userID string) string { return surfacedKeyPrefix + ":" + userID }

func (f *Surfaced) Prepare(ctx context.Context, rctx *core.RecommendContext, _ []*core.Item) error {
	if rctx == nil || rctx.UserID == "" || f.Store == nil {
		return nil
	}
	batches, err := f.load(ctx, rctx.UserID)
	if err != nil {
		return nil // 存储故障按无曝光历史处理
	}
	cutoff := time.Now().Unix() - f.window()
	set := make(map[string]struct{})
	for _, b := range batches {
		if b.At < cutoff {
			continue
		}
		for _, id := range b.IDs {
			set[id] = struct{}{}
		}
	}
	f.mu.Lock()
	f.recent[rctx.UserID] = set
	f.mu.Unlock()
	return nil
}

func (f *Surfaced) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil || rctx.UserID == "" {
		return false, nil
	}
	f.mu.RLock()
	set := f.recent[rctx.UserID]
	f.mu.RUnlock()
	if set == nil {
		return false, nil
	}
	_, hit := set[item.ID]
	return hit, nil
}

// Record 在一次成功推荐后记录曝光批次，并裁剪窗口外的旧批次。
// 由编排层在返回结果前调用。
func (f *Surfaced) Record(ctx context.Context, userID string, ids []string) error {
	if f.Store == nil || userID == "" || len(ids) == 0 {
		return nil
	}
	batches, _ := f.load(ctx, userID)
	cutoff := time.Now().Unix() - f.window()
	kept := make([]surfacedBatch, 0, len(batches)+1)
	for _, b := range batches {
		if b.At >= cutoff {
			kept = append(kept, b)
		}
	}
	kept = append(kept, surfacedBatch{At: time.Now().Unix(), IDs: ids})

	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return f.Store.Set(ctx, f.key(userID), data, int(f.window()))
}

func (f *Surfaced) load(ctx context.Context, userID string) ([]surfacedBatch, error) {
	data, err := f.Store.Get(ctx, f.key(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var batches []surfacedBatch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

var _ Filter = (*Surfaced)(nil)
var _ Preparer = (*Surfaced)(nil)
