package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/factor"
	"github.com/rushteam/bookrec/pkg/utils"
)

// DefaultCollaborativeLimit 是协同召回的默认候选数。
const DefaultCollaborativeLimit = 50

// Collaborative 是协同召回源：从因子模型快照中按点积取 TopN。
// 模型未训练或用户不在模型中的错误原样返回，由 Fanout/编排层降级。
type Collaborative struct {
	// Snapshot 因子模型的当前快照持有者
	Snapshot *core.Snapshot[factor.Model]
	// Limit 候选数，零值走默认值
	Limit int
}

func (r *Collaborative) Name() string { return "recall.collaborative" }

func (r *Collaborative) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	model := r.Snapshot.Load()
	if model == nil {
		return nil, core.ErrModelNotTrained
	}

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultCollaborativeLimit
	}

	items, err := model.Predict(rctx.UserID, nil, limit)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.PutLabel(core.LabelRecallSource, utils.Label{Value: r.Name(), Source: "recall"})
		it.PutLabel(core.LabelRationale, utils.Label{Value: core.RationaleCollaborative, Source: "recall"})
	}
	return items, nil
}
