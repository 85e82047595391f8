// Package recall 实现候选生成：协同召回、内容相似召回、热门兜底召回，
// 以及把多个召回源并发执行的 Fanout 节点。
package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// Source 表示一个可复用的召回源（协同/内容/热门/...）。
// 你可以把它理解为“可并发 fan-out 的策略单元”。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
