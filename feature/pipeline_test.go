package feature

import (
	"math"
	"testing"

	"github.com/rushteam/bookrec/core"
)

func corpus() []*core.Book {
	return []*core.Book{
		{ID: "b1", Title: "The Silent Sea", Author: "Ann Lee", Genres: []string{"Thriller", "Mystery"}, Language: "english", Year: 2001, Summary: "A detective hunts a killer across the frozen sea"},
		{ID: "b2", Title: "Gardens of Stone", Author: "Ann Lee", Genres: []string{"Drama"}, Language: "english", Year: 2010, Summary: "A family saga rooted in an old garden"},
		{ID: "b3", Title: "Mar de Fondo", Author: "Luis Ortega", Genres: []string{"Thriller"}, Language: "spanish", Year: 1995, Summary: "Un misterio en la costa atlantica"},
		{ID: "b4", Title: "Night Harvest", Author: "", Genres: nil, Language: "english", Year: 0, Summary: ""},
	}
}

func TestPipeline_FitVectorizeDeterministic(t *testing.T) {
	p := NewPipeline()
	fitted, err := p.Fit(corpus())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	v1, err := fitted.Vectorize(corpus()[0])
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	v2, err := fitted.Vectorize(corpus()[0])
	if err != nil {
		t.Fatalf("Vectorize again: %v", err)
	}

	// 同一 Fitted 状态下重复向量化必须比特级一致
	if len(v1.Embedding) != len(v2.Embedding) {
		t.Fatalf("dims differ: %d vs %d", len(v1.Embedding), len(v2.Embedding))
	}
	for i := range v1.Embedding {
		if v1.Embedding[i] != v2.Embedding[i] {
			t.Fatalf("embedding[%d] differs: %v vs %v", i, v1.Embedding[i], v2.Embedding[i])
		}
	}
}

func TestPipeline_UnitNorm(t *testing.T) {
	p := NewPipeline()
	fitted, err := p.Fit(corpus())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for _, b := range corpus() {
		v, err := fitted.Vectorize(b)
		if err != nil {
			t.Fatalf("Vectorize(%s): %v", b.ID, err)
		}
		var norm float64
		for _, x := range v.Embedding {
			norm += x * x
		}
		if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
			t.Fatalf("book %s: norm = %v, want 1.0", b.ID, math.Sqrt(norm))
		}
	}
}

func TestPipeline_NeutralDefaults(t *testing.T) {
	p := NewPipeline()
	fitted, err := p.Fit(corpus())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// 缺失字段的书必须能向量化，不报错
	sparse := &core.Book{ID: "sparse", Title: "Untitled Draft"}
	v, err := fitted.Vectorize(sparse)
	if err != nil {
		t.Fatalf("Vectorize sparse book: %v", err)
	}
	if len(v.Embedding) != fitted.Dims() {
		t.Fatalf("dims = %d, want %d", len(v.Embedding), fitted.Dims())
	}

	// 缺失年份取中点
	if got := fitted.scaleYear(0); got != 0.5 {
		t.Fatalf("scaleYear(0) = %v, want 0.5", got)
	}
	if got := fitted.scaleYear(1995); got != 0 {
		t.Fatalf("scaleYear(min) = %v, want 0", got)
	}
	if got := fitted.scaleYear(2010); got != 1 {
		t.Fatalf("scaleYear(max) = %v, want 1", got)
	}
}

func TestPipeline_VectorizeBatchSkipsInvalid(t *testing.T) {
	p := NewPipeline()
	fitted, err := p.Fit(corpus())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	books := append(corpus(), &core.Book{ID: "", Title: "no id"})
	vecs, err := fitted.VectorizeBatch(books)
	if err != nil {
		t.Fatalf("VectorizeBatch: %v", err)
	}
	if len(vecs) != len(corpus()) {
		t.Fatalf("VectorizeBatch kept %d vectors, want %d", len(vecs), len(corpus()))
	}
}

func TestPipeline_EmptyCorpus(t *testing.T) {
	p := NewPipeline()
	fitted, err := p.Fit(nil)
	if err != nil {
		t.Fatalf("Fit(nil): %v", err)
	}
	v, err := fitted.Vectorize(&core.Book{ID: "b", Title: "T"})
	if err != nil {
		t.Fatalf("Vectorize on empty-corpus state: %v", err)
	}
	if len(v.Embedding) == 0 {
		t.Fatal("embedding is empty")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lowercases and splits", in: "The Silent SEA", want: []string{"silent", "sea"}},
		{name: "drops stop words", in: "a tale of two cities", want: []string{"tale", "two", "cities"}},
		{name: "drops single chars", in: "x y plot", want: []string{"plot"}},
		{name: "empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}
