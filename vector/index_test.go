package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/rushteam/bookrec/core"
)

// unitVec 生成确定性的单位向量测试数据。
func unitVec(rng *rand.Rand, dims int) []float64 {
	v := make([]float64, dims)
	var norm float64
	for i := range v {
		v[i] = rng.NormFloat64()
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func testVectors(n, dims int) []*core.ContentVector {
	rng := rand.New(rand.NewSource(1))
	out := make([]*core.ContentVector, n)
	for i := range out {
		out[i] = &core.ContentVector{
			BookID:    fmt.Sprintf("b%04d", i),
			Language:  "english",
			Embedding: unitVec(rng, dims),
		}
	}
	return out
}

func TestBuild_SelfSimilarityTopOne(t *testing.T) {
	tests := []struct {
		name string
		n    int
		opts Options
		wantExact bool
	}{
		{name: "exact scan below threshold", n: 50, opts: Options{}, wantExact: true},
		{name: "ivf above threshold", n: 300, opts: Options{ExactThreshold: 100, NProbe: 4}, wantExact: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecs := testVectors(tt.n, 16)
			idx, err := Build("english", vecs, tt.opts)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if idx.Exact() != tt.wantExact {
				t.Fatalf("Exact() = %v, want %v", idx.Exact(), tt.wantExact)
			}

			// 自相似：任意在库向量查询自身应为 top-1 且分数 ≈ 1.0
			probe := vecs[tt.n/2]
			got, err := idx.Query(probe.Embedding, 3, nil)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) == 0 || got[0].BookID != probe.BookID {
				t.Fatalf("top-1 = %v, want %s", got, probe.BookID)
			}
			if math.Abs(got[0].Score-1.0) > 1e-9 {
				t.Fatalf("self similarity = %v, want ~1.0", got[0].Score)
			}
		})
	}
}

func TestQueryByBook_ExcludesSeed(t *testing.T) {
	idx, err := Build("english", testVectors(40, 16), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := idx.QueryByBook("b0010", 5, nil)
	if err != nil {
		t.Fatalf("QueryByBook: %v", err)
	}
	for _, n := range got {
		if n.BookID == "b0010" {
			t.Fatal("seed book returned as its own neighbor")
		}
	}

	if _, err := idx.QueryByBook("missing", 5, nil); !core.IsNotFound(err) {
		t.Fatalf("QueryByBook(missing) err = %v, want NOT_FOUND", err)
	}
}

func TestQuery_Excluded(t *testing.T) {
	idx, err := Build("english", testVectors(20, 8), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	probe, _ := idx.Vector("b0005")
	got, err := idx.Query(probe, 5, map[string]struct{}{"b0005": {}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, n := range got {
		if n.BookID == "b0005" {
			t.Fatal("excluded book returned")
		}
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build("english", nil, Options{})
	if err != core.ErrIndexNotBuilt {
		t.Fatalf("Build(empty) err = %v, want ErrIndexNotBuilt", err)
	}
}

func TestManager_LazyBuildAndLastKnownGood(t *testing.T) {
	builds := 0
	fail := false
	m := NewManager(func(ctx context.Context, language string) (*LanguageIndex, error) {
		if fail {
			return nil, core.ErrIndexNotBuilt
		}
		builds++
		return Build(language, testVectors(10, 8), Options{})
	})

	ctx := context.Background()
	idx1, err := m.Get(ctx, "english")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if builds != 1 {
		t.Fatalf("builds = %d, want 1 (lazy build once)", builds)
	}

	// 命中缓存，不再构建
	idx2, err := m.Get(ctx, "english")
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if builds != 1 || idx2 != idx1 {
		t.Fatalf("expected cached index, builds = %d", builds)
	}

	// 重建失败：保留旧索引，Refresh 返回错误
	fail = true
	if err := m.Refresh(ctx, "english"); err == nil {
		t.Fatal("Refresh should surface build failure")
	}
	got, err := m.Get(ctx, "english")
	if err != nil || got != idx1 {
		t.Fatalf("Get after failed refresh = %v, %v; want last-known-good", got, err)
	}

	// 没有历史版本的语言构建失败直接报错
	if _, err := m.Get(ctx, "klingon"); err == nil {
		t.Fatal("Get for never-built language should fail when builder fails")
	}
}

func TestManager_Eviction(t *testing.T) {
	m := NewManager(func(ctx context.Context, language string) (*LanguageIndex, error) {
		return Build(language, testVectors(5, 4), Options{})
	})
	m.MaxResident = 2

	ctx := context.Background()
	for _, lang := range []string{"english", "spanish", "german"} {
		if _, err := m.Get(ctx, lang); err != nil {
			t.Fatalf("Get(%s): %v", lang, err)
		}
	}
	if got := m.Languages(); len(got) != 2 {
		t.Fatalf("resident languages = %v, want 2 after eviction", got)
	}
}
