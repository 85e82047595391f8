package recall

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 单个召回源失败或超时只丢弃该源的结果，不中断其他源——
// 降级逻辑由各源内部以及编排层兜底分支负责。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		all   []*core.Item
		eg, _ = errgroup.WithContext(ctx)
	)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		s := src
		priority := i // 索引越小优先级越高，去重时保留

		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				if !core.IsRecoverable(err) {
					return err
				}
				return nil
			}

			for _, it := range items {
				if _, ok := it.Labels[core.LabelRecallSource]; !ok {
					it.PutLabel(core.LabelRecallSource, utils.Label{Value: s.Name(), Source: "recall"})
				}
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(priority), Source: "recall"})
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if !n.Dedup {
		return all, nil
	}
	return mergeByPriority(all), nil
}

// mergeByPriority 按 ID 去重：相同 ID 保留优先级更高（recall_priority 更小）
// 的条目，落选条目的 Labels 并入保留者以便归因。
func mergeByPriority(all []*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		old, exists := seen[it.ID]
		if !exists {
			seen[it.ID] = it
			out = append(out, it)
			continue
		}
		if priorityOf(it) < priorityOf(old) {
			for k, v := range old.Labels {
				it.PutLabel(k, v)
			}
			seen[it.ID] = it
			for i := range out {
				if out[i].ID == it.ID {
					out[i] = it
					break
				}
			}
			continue
		}
		for k, v := range it.Labels {
			old.PutLabel(k, v)
		}
	}
	return out
}

func priorityOf(it *core.Item) int {
	lbl, ok := it.Labels["recall_priority"]
	if !ok {
		return 1 << 30
	}
	p, err := strconv.Atoi(lbl.Value)
	if err != nil {
		return 1 << 30
	}
	return p
}
