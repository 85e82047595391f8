package recall

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/factor"
	"github.com/rushteam/bookrec/pkg/utils"
	"github.com/rushteam/bookrec/store"
	"github.com/rushteam/bookrec/vector"
)

// axisVec 返回第 i 个标准基向量，近邻关系可手工推算。
func axisVec(dims, i int, blend float64) []float64 {
	v := make([]float64, dims)
	v[i] = 1
	if blend > 0 && i+1 < dims {
		v[i] = 1 - blend
		v[i+1] = blend
	}
	normalize(v)
	return v
}

func contentFixture(t *testing.T) (*store.MemoryCatalog, *vector.Manager) {
	t.Helper()

	catalog := store.NewMemoryCatalog()
	books := []*core.Book{
		{ID: "b1", Title: "Alpha", Author: "A", Language: "english", PopularityScore: 1},
		{ID: "b2", Title: "Beta", Author: "B", Language: "english", PopularityScore: 2},
		{ID: "b3", Title: "Gamma", Author: "C", Language: "english", PopularityScore: 3},
		{ID: "b4", Title: "Delta", Author: "D", Language: "english", PopularityScore: 4},
		{ID: "s1", Title: "Sol", Author: "E", Language: "spanish", PopularityScore: 5},
	}
	for _, b := range books {
		if err := catalog.PutBook(b); err != nil {
			t.Fatalf("PutBook: %v", err)
		}
	}

	vecsByLang := map[string][]*core.ContentVector{
		"english": {
			{BookID: "b1", Language: "english", Embedding: axisVec(4, 0, 0)},
			{BookID: "b2", Language: "english", Embedding: axisVec(4, 0, 0.2)}, // b1 的近邻
			{BookID: "b3", Language: "english", Embedding: axisVec(4, 2, 0)},
			{BookID: "b4", Language: "english", Embedding: axisVec(4, 2, 0.2)}, // b3 的近邻
		},
		"spanish": {
			{BookID: "s1", Language: "spanish", Embedding: axisVec(4, 1, 0)},
		},
	}
	manager := vector.NewManager(func(ctx context.Context, language string) (*vector.LanguageIndex, error) {
		return vector.Build(language, vecsByLang[language], vector.Options{})
	})
	return catalog, manager
}

func TestContent_SeedRecall(t *testing.T) {
	catalog, manager := contentFixture(t)
	now := time.Now()
	// 最近 like 是 b3，更早的 like 是 b1
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b1", Action: core.ActionLike, Timestamp: now.Add(-time.Hour)})
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b3", Action: core.ActionLike, Timestamp: now})

	r := &Content{Manager: manager, Interactions: catalog, Catalog: catalog, Seed: 1}
	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("no items recalled")
	}

	got := map[string]bool{}
	for _, it := range items {
		got[it.ID] = true
		// 种子与已交互的书不允许出现
		if it.ID == "b1" || it.ID == "b3" {
			t.Fatalf("interacted book %s recalled", it.ID)
		}
		rationale := it.Label(core.LabelRationale)
		if !strings.HasPrefix(rationale, core.RationaleContent+" seed=") {
			t.Fatalf("rationale = %q, want content seed=<id>", rationale)
		}
	}
	// b3 的近邻 b4 必须出现（主种子），b1 的近邻 b2 也应出现（次种子）
	if !got["b4"] {
		t.Fatalf("neighbor of most recent like missing, got %v", got)
	}
	if !got["b2"] {
		t.Fatalf("neighbor of prior like missing, got %v", got)
	}
}

func TestContent_NoLikesMeansNoSignal(t *testing.T) {
	catalog, manager := contentFixture(t)
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b1", Action: core.ActionSearch, Timestamp: time.Now()})

	r := &Content{Manager: manager, Interactions: catalog, Catalog: catalog}
	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty recall without likes, got %d items", len(items))
	}
}

func TestContent_LanguageScope(t *testing.T) {
	catalog, manager := contentFixture(t)
	now := time.Now()
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b1", Action: core.ActionLike, Timestamp: now})

	// 请求只要西语：英语种子被跳过，结果为空
	r := &Content{Manager: manager, Interactions: catalog, Catalog: catalog}
	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1", Languages: []string{"spanish"}})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items outside requested language, got %d", len(items))
	}
}

func TestContent_ProfileMode(t *testing.T) {
	catalog, manager := contentFixture(t)
	now := time.Now()
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b1", Action: core.ActionLike, Timestamp: now})
	_ = catalog.AddInteraction(&core.Interaction{UserID: "u1", BookID: "b3", Action: core.ActionDislike, Timestamp: now})

	r := &Content{Manager: manager, Interactions: catalog, Catalog: catalog, Mode: ModeProfile}
	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("profile recall returned nothing")
	}
	// b2 与 like 画像对齐，应排在 dislike 近邻 b4 之前
	if items[0].ID != "b2" {
		t.Fatalf("top profile item = %s, want b2", items[0].ID)
	}
}

func TestPopularity_CatalogFallbackAndZSet(t *testing.T) {
	catalog, _ := contentFixture(t)
	r := &Popularity{Catalog: catalog, Limit: 3}

	items, err := r.Recall(context.Background(), &core.RecommendContext{})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 3 || items[0].ID != "s1" {
		t.Fatalf("catalog-ranked recall = %v, want s1 first", itemIDs(items))
	}
	if items[0].Label(core.LabelRationale) != core.RationalePopularity {
		t.Fatalf("rationale = %q, want popularity", items[0].Label(core.LabelRationale))
	}

	// 预热榜单后走 zset 路径
	kv := store.NewMemoryStore()
	defer kv.Close()
	if err := WarmPopularity(context.Background(), catalog, kv, []string{"english"}, 10); err != nil {
		t.Fatalf("WarmPopularity: %v", err)
	}
	r.KV = kv
	items, err = r.Recall(context.Background(), &core.RecommendContext{Languages: []string{"english"}})
	if err != nil {
		t.Fatalf("Recall with zset: %v", err)
	}
	if len(items) == 0 || items[0].ID != "b4" {
		t.Fatalf("zset recall = %v, want b4 first (top english popularity)", itemIDs(items))
	}
}

func TestCollaborative_NotTrained(t *testing.T) {
	snap := &core.Snapshot[factor.Model]{}
	r := &Collaborative{Snapshot: snap}
	_, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != core.ErrModelNotTrained {
		t.Fatalf("Recall err = %v, want ErrModelNotTrained", err)
	}
}

type stubSource struct {
	name  string
	items []*core.Item
	err   error
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	return s.items, s.err
}

func TestFanout_MergesAndSurvivesSourceFailure(t *testing.T) {
	mk := func(id string, score float64) *core.Item {
		it := core.NewItem(id)
		it.Score = score
		return it
	}
	n := &Fanout{
		Dedup: true,
		Sources: []Source{
			&stubSource{name: "primary", items: []*core.Item{mk("a", 1), mk("b", 2)}},
			&stubSource{name: "broken", err: core.ErrModelNotTrained},
			&stubSource{name: "secondary", items: []*core.Item{mk("b", 9), mk("c", 3)}},
		},
	}

	items, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u"}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("merged items = %v, want 3 distinct", itemIDs(items))
	}
	for _, it := range items {
		if it.ID == "b" && it.Score != 2 {
			t.Fatalf("duplicate b kept score %v, want priority source's 2", it.Score)
		}
		if it.Label(core.LabelRecallSource) == "" {
			t.Fatalf("item %s missing recall_source label", it.ID)
		}
	}
}

func TestFanout_LabelsPreserved(t *testing.T) {
	it := core.NewItem("x")
	it.PutLabel(core.LabelRecallSource, utils.Label{Value: "recall.collaborative", Source: "recall"})
	n := &Fanout{Sources: []Source{&stubSource{name: "wrapper", items: []*core.Item{it}}}}

	items, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// 源内部已写的 recall_source 不被覆盖
	if got := items[0].Label(core.LabelRecallSource); got != "recall.collaborative" {
		t.Fatalf("recall_source = %q, want recall.collaborative", got)
	}
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
