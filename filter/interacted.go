package filter

import (
	"context"
	"sync"

	"github.com/rushteam/bookrec/core"
)

// Interacted 过滤用户已经触达过的书（like/dislike/search 全部算触达）。
// 触达历史在 Prepare 阶段一次性读入，逐条判定不再访问存储。
type Interacted struct {
	Interactions core.InteractionStore

	mu   sync.RWMutex
	seen map[string]map[string]struct{} // user ID -> book ID set
}

func NewInteracted(interactions core.InteractionStore) *Interacted {
	return &Interacted{
		Interactions: interactions,
		seen:         make(map[string]map[string]struct{}),
	}
}

func (f *Interacted) Name() string { return "filter.interacted" }

func (f *Interacted) Prepare(ctx context.Context, rctx *core.RecommendContext, _ []*core.Item) error {
	if rctx == nil || rctx.UserID == "" {
		return nil
	}
	history, err := f.Interactions.GetInteractions(ctx, rctx.UserID)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(history))
	for _, in := range history {
		set[in.BookID] = struct{}{}
	}
	f.mu.Lock()
	f.seen[rctx.UserID] = set
	f.mu.Unlock()
	return nil
}

func (f *Interacted) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil || rctx.UserID == "" {
		return false, nil
	}
	f.mu.RLock()
	set := f.seen[rctx.UserID]
	f.mu.RUnlock()
	if set == nil {
		return false, nil
	}
	_, hit := set[item.ID]
	return hit, nil
}

var _ Filter = (*Interacted)(nil)
var _ Preparer = (*Interacted)(nil)
