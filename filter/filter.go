// Package filter 实现候选过滤：已交互排除、近期已曝光排除、
// 语言约束以及 CEL 规则过滤。
package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 是可选扩展：需要按请求批量预取数据的过滤器实现它，
// FilterNode 在逐条判定前调用一次，避免每个 item 各打一次存储。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) error
}
