package rank

import (
	"context"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
)

func sourced(id string, score float64, source string) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.PutLabel(core.LabelRecallSource, utils.Label{Value: source, Source: "recall"})
	return it
}

func TestFusionNode_NormalizesPerSource(t *testing.T) {
	// 协同源分数量纲远大于内容源，组内归一后可比
	items := []*core.Item{
		sourced("a", 100, "recall.collaborative"),
		sourced("b", 50, "recall.collaborative"),
		sourced("c", 0.9, "recall.content"),
		sourced("d", 0.1, "recall.content"),
	}
	n := &FusionNode{}
	out, err := n.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	scores := map[string]float64{}
	for _, it := range out {
		scores[it.ID] = it.Score
	}
	// 两个源的组内最高分都归一为 1.0
	if scores["a"] != 1.0 || scores["c"] != 1.0 {
		t.Fatalf("per-source max not normalized: a=%v c=%v", scores["a"], scores["c"])
	}
	if scores["b"] != 0.0 || scores["d"] != 0.0 {
		t.Fatalf("per-source min not normalized: b=%v d=%v", scores["b"], scores["d"])
	}
}

func TestFusionNode_WeightsAndDuplicates(t *testing.T) {
	items := []*core.Item{
		sourced("a", 1.0, "recall.collaborative"),
		sourced("b", 0.0, "recall.collaborative"),
		sourced("a", 1.0, "recall.content"), // a 同时被两个源召回
		sourced("c", 0.0, "recall.content"),
	}
	n := &FusionNode{Weights: map[string]float64{
		"recall.collaborative": 0.7,
		"recall.content":       0.3,
	}}
	out, err := n.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d items, want 3 after duplicate merge", len(out))
	}
	// a 聚合两个源的加权分：0.7*1 + 0.3*1
	if out[0].ID != "a" || out[0].Score != 1.0 {
		t.Fatalf("top = %s/%v, want a/1.0", out[0].ID, out[0].Score)
	}
}

func TestFusionNode_SingleScoreGroup(t *testing.T) {
	// 组内只有一个分数值时归一为 1.0，不产生除零
	items := []*core.Item{
		sourced("a", 5, "recall.popularity"),
		sourced("b", 5, "recall.popularity"),
	}
	out, err := (&FusionNode{}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, it := range out {
		if it.Score != 1.0 {
			t.Fatalf("flat group score = %v, want 1.0", it.Score)
		}
	}
}
