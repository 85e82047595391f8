package filter

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
	"github.com/rushteam/bookrec/store"
)

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, len(ids))
	for i, id := range ids {
		out[i] = core.NewItem(id)
	}
	return out
}

func TestInteracted_FiltersHistory(t *testing.T) {
	catalog := store.NewMemoryCatalog()
	now := time.Now()
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b1", Action: core.ActionLike, Timestamp: now})
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b2", Action: core.ActionDislike, Timestamp: now})

	node := &FilterNode{Filters: []Filter{NewInteracted(catalog)}}
	rctx := &core.RecommendContext{UserID: "u1"}

	out, err := node.Process(context.Background(), rctx, items("b1", "b2", "b3"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b3" {
		t.Fatalf("filtered result = %v, want [b3]", out)
	}
}

func TestSurfaced_WindowAndRecord(t *testing.T) {
	kv := store.NewMemoryStore()
	defer kv.Close()
	f := NewSurfaced(kv)
	f.WindowSeconds = 600
	ctx := context.Background()

	if err := f.Record(ctx, "u1", []string{"b1", "b2"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	node := &FilterNode{Filters: []Filter{f}}
	rctx := &core.RecommendContext{UserID: "u1"}
	out, err := node.Process(ctx, rctx, items("b1", "b2", "b3"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b3" {
		t.Fatalf("surfaced filter result = %v, want [b3]", out)
	}

	// 匿名请求不做曝光过滤
	out, err = node.Process(ctx, &core.RecommendContext{}, items("b1"))
	if err != nil || len(out) != 1 {
		t.Fatalf("anonymous request filtered: %v, %v", out, err)
	}
}

func TestSurfaced_StoreFailureMeansPass(t *testing.T) {
	// Store 为 nil 模拟后端不可用：过滤器必须放行而不是报错
	f := NewSurfaced(nil)
	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items("b1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 {
		t.Fatal("store outage must not drop candidates")
	}
}

func TestLanguage_PostHocFilter(t *testing.T) {
	catalog := store.NewMemoryCatalog()
	_ = catalog.PutBook(&core.Book{ID: "en1", Title: "T1", Language: "English"})
	_ = catalog.PutBook(&core.Book{ID: "es1", Title: "T2", Language: "spanish"})

	node := &FilterNode{Filters: []Filter{NewLanguage(catalog)}}
	rctx := &core.RecommendContext{UserID: "u1", Languages: []string{"english"}}

	out, err := node.Process(context.Background(), rctx, items("en1", "es1", "ghost"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0].ID != "en1" {
		t.Fatalf("language filter result = %v, want [en1]", out)
	}
	if out[0].Label(core.LabelLanguage) != "english" {
		t.Fatalf("language label = %q, want english", out[0].Label(core.LabelLanguage))
	}

	// 不带语言约束时全放行
	out, err = node.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items("en1", "es1"))
	if err != nil || len(out) != 2 {
		t.Fatalf("unconstrained filter result = %v, %v", out, err)
	}
}

func TestRule_CELExpression(t *testing.T) {
	f, err := NewRule(`label.recall_source == "recall.popularity" && item.score < 0.5`)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}

	low := core.NewItem("low")
	low.Score = 0.2
	low.PutLabel(core.LabelRecallSource, utils.Label{Value: "recall.popularity", Source: "recall"})
	high := core.NewItem("high")
	high.Score = 0.9
	high.PutLabel(core.LabelRecallSource, utils.Label{Value: "recall.popularity", Source: "recall"})

	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.Item{low, high})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0].ID != "high" {
		t.Fatalf("rule filter result = %v, want [high]", out)
	}
}

func TestNewRule_CompileError(t *testing.T) {
	if _, err := NewRule("label.recall_source =="); err == nil {
		t.Fatal("expected compile error for malformed expression")
	}
}

func TestRule_EmptyExpressionFiltersNothing(t *testing.T) {
	f, err := NewRule("")
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.Item{core.NewItem("a"), core.NewItem("b")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("empty rule must pass every item, got %d of 2", len(out))
	}
}
