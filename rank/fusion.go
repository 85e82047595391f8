// Package rank 实现候选融合排序：按召回源分组做 min-max 归一，
// 再以可配权重加权合并成最终分数。
package rank

import (
	"context"
	"sort"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// FusionNode 融合多个召回源的候选：
//  1. 按 recall_source 分组，组内 min-max 归一到 [0,1]，
//     消除不同源的量纲差异（点积 vs 余弦 vs 名次分）
//  2. 归一分 × 源权重；同一 ID 出现在多个源时加权分相加，Labels 合并
//  3. 按融合分降序输出，并列按 ID 字典序
type FusionNode struct {
	// Weights 按召回源名称配置权重，未配置的源走 DefaultWeight
	Weights map[string]float64
	// DefaultWeight 零值时取 1.0
	DefaultWeight float64
}

func (n *FusionNode) Name() string        { return "rank.fusion" }
func (n *FusionNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *FusionNode) weight(source string) float64 {
	if w, ok := n.Weights[source]; ok {
		return w
	}
	if n.DefaultWeight > 0 {
		return n.DefaultWeight
	}
	return 1.0
}

func (n *FusionNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) <= 1 {
		return items, nil
	}

	// 分组统计每个源的分数区间
	type span struct{ min, max float64 }
	spans := make(map[string]*span)
	for _, it := range items {
		if it == nil {
			continue
		}
		src := it.Label(core.LabelRecallSource)
		s, ok := spans[src]
		if !ok {
			spans[src] = &span{min: it.Score, max: it.Score}
			continue
		}
		if it.Score < s.min {
			s.min = it.Score
		}
		if it.Score > s.max {
			s.max = it.Score
		}
	}

	merged := make(map[string]*core.Item, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		src := it.Label(core.LabelRecallSource)
		s := spans[src]
		norm := 1.0
		if s.max > s.min {
			norm = (it.Score - s.min) / (s.max - s.min)
		}
		contribution := norm * n.weight(src)

		if kept, ok := merged[it.ID]; ok {
			kept.Score += contribution
			for k, v := range it.Labels {
				kept.PutLabel(k, v)
			}
			continue
		}
		fused := it
		fused.Score = contribution
		fused.PutLabel("rank_model", utils.Label{Value: n.Name(), Source: "rank"})
		merged[it.ID] = fused
		order = append(order, it.ID)
	}

	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
