package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/dsl"
)

// Rule 是 CEL 表达式驱动的过滤器：表达式命中的候选被移除。
// 运营可用它做临时策略，例如：
//
//	label.recall_source == "recall.popularity" && item.score < 0.2
type Rule struct {
	// Expr CEL 表达式，描述“应被移除”的候选
	Expr string

	rule *dsl.Rule
}

// NewRule 编译表达式；编译失败立即报错，不进入链路。
func NewRule(expr string) (*Rule, error) {
	compiled, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Rule{Expr: expr, rule: compiled}, nil
}

func (f *Rule) Name() string { return "filter.rule" }

func (f *Rule) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.rule == nil {
		return false, nil
	}
	return f.rule.Evaluate(item, rctx)
}

var _ Filter = (*Rule)(nil)
