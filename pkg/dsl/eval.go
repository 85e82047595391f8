// Package dsl 基于 CEL (Common Expression Language) 提供规则表达式能力，
// 供过滤/重排节点按 Label 与分数做策略驱动的裁决。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/bookrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Rule 是一条编译后的 CEL 规则，编译一次后可对任意条目并发求值。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "popularity" / label.language != "english"
//   - 数值：item.score > 0.7 / item.score >= 0.5
//   - 逻辑：label.rationale == "content" && item.score > 0.8
//   - 包含：label.recall_source.contains("collab")
//
// 注意：CEL 访问不存在的 key 会报错，存在性检查用 label.key != null。
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。表达式为空时返回恒假规则（不命中任何条目），
// 空规则用在过滤场景不会误杀候选。
func Compile(expr string) (*Rule, error) {
	if expr == "" {
		return &Rule{expr: expr}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// Evaluate 对单个条目求值，返回布尔结果。
// 表达式必须返回 bool，否则报错。
func (r *Rule) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if r.prg == nil {
		return false, nil
	}

	out, _, err := r.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据。
// label 作为顶层访问器暴露（label.recall_source 直接取 value）。
func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	labelAccessor := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = map[string]any{"value": v.Value, "source": v.Source}
		labelAccessor[k] = v.Value
	}

	item := map[string]any{
		"id":     it.ID,
		"score":  it.Score,
		"meta":   it.Meta,
		"labels": labels,
	}

	ctx := map[string]any{}
	if rctx != nil {
		ctx["user_id"] = rctx.UserID
		ctx["languages"] = rctx.Languages
		ctx["size"] = rctx.Size
		ctx["params"] = rctx.Params
	}

	return map[string]any{
		"item":  item,
		"label": labelAccessor,
		"rctx":  ctx,
	}
}
