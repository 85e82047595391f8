// Package vector 实现按语言分片的图书向量相似索引。
//
// 小语料走精确线性扫描，大语料走 IVF 风格的分区索引（k-means 质心 +
// nprobe 探测），两者对 Query 完全透明。向量必须是 L2 归一化的，
// 内积即余弦相似度。
package vector

import (
	"sort"

	"github.com/google/uuid"

	"github.com/rushteam/bookrec/core"
)

// 索引构建默认参数。
const (
	DefaultExactThreshold = 1000 // 低于该规模走精确扫描
	DefaultNProbe         = 8    // IVF 查询探测的分区数
	DefaultMinNList       = 10   // IVF 最小分区数
)

// Options 控制索引构建。字段导出，零值走默认值。
type Options struct {
	// ExactThreshold 精确/近似切换的语料规模阈值
	ExactThreshold int
	// NProbe IVF 查询时探测的分区数
	NProbe int
	// KMeansIterations 质心迭代轮数
	KMeansIterations int
	// Seed 质心初始化种子
	Seed int64
}

func (o Options) exactThreshold() int {
	if o.ExactThreshold > 0 {
		return o.ExactThreshold
	}
	return DefaultExactThreshold
}

func (o Options) nprobe() int {
	if o.NProbe > 0 {
		return o.NProbe
	}
	return DefaultNProbe
}

func (o Options) kmeansIterations() int {
	if o.KMeansIterations > 0 {
		return o.KMeansIterations
	}
	return 15
}

// Neighbor 是一次相似查询的单条结果。
type Neighbor struct {
	BookID string
	Score  float64 // 内积，单位向量下等于余弦相似度
}

// LanguageIndex 是单一语言的不可变向量索引。
// 构建完成后只读，可并发查询；更新通过 Manager 整体换入新实例。
type LanguageIndex struct {
	// Version 标识构建版本
	Version  string
	language string

	ids     []string
	vecs    [][]float64
	byID    map[string]int
	ivf     *ivfIndex // nil 表示精确扫描
	nprobe  int
}

// Build 为一种语言构建索引。空向量集返回 ErrIndexNotBuilt。
// kind 的选择由语料规模决定，调用方无需关心。
func Build(language string, vectors []*core.ContentVector, opts Options) (*LanguageIndex, error) {
	clean := make([]*core.ContentVector, 0, len(vectors))
	var dims int
	for _, v := range vectors {
		if v == nil || v.BookID == "" || len(v.Embedding) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(v.Embedding)
		}
		if len(v.Embedding) != dims {
			return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector: inconsistent embedding dims for language "+language)
		}
		clean = append(clean, v)
	}
	if len(clean) == 0 {
		return nil, core.ErrIndexNotBuilt
	}

	// BookID 字典序入库，保证同一输入构建结果确定
	sort.Slice(clean, func(i, j int) bool { return clean[i].BookID < clean[j].BookID })

	idx := &LanguageIndex{
		Version:  uuid.NewString(),
		language: language,
		ids:      make([]string, len(clean)),
		vecs:     make([][]float64, len(clean)),
		byID:     make(map[string]int, len(clean)),
		nprobe:   opts.nprobe(),
	}
	for i, v := range clean {
		idx.ids[i] = v.BookID
		idx.vecs[i] = v.Embedding
		idx.byID[v.BookID] = i
	}

	if len(clean) >= opts.exactThreshold() {
		idx.ivf = buildIVF(idx.vecs, opts)
	}
	return idx, nil
}

// Language 返回索引覆盖的语言。
func (x *LanguageIndex) Language() string { return x.language }

// Size 返回入库向量数。
func (x *LanguageIndex) Size() int { return len(x.ids) }

// Exact 返回是否为精确扫描索引（健康检查/测试用）。
func (x *LanguageIndex) Exact() bool { return x.ivf == nil }

// Query 返回与 query 内积最高的 k 本书，excluded 中的 ID 被跳过。
func (x *LanguageIndex) Query(query []float64, k int, excluded map[string]struct{}) ([]Neighbor, error) {
	if len(query) == 0 {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector: empty query vector")
	}
	if k <= 0 {
		k = 10
	}

	var candidates []int
	if x.ivf != nil {
		candidates = x.ivf.probe(query, x.nprobe)
	} else {
		candidates = nil // 全量
	}

	neighbors := make([]Neighbor, 0, k)
	consider := func(i int) {
		id := x.ids[i]
		if excluded != nil {
			if _, ex := excluded[id]; ex {
				return
			}
		}
		neighbors = append(neighbors, Neighbor{BookID: id, Score: dot(query, x.vecs[i])})
	}
	if candidates == nil {
		for i := range x.vecs {
			consider(i)
		}
	} else {
		for _, i := range candidates {
			consider(i)
		}
	}

	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Score != neighbors[b].Score {
			return neighbors[a].Score > neighbors[b].Score
		}
		return neighbors[a].BookID < neighbors[b].BookID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// QueryByBook 以某本在库图书为种子查询近邻，种子自身总是被排除。
// 种子不在索引中返回 NOT_FOUND。
func (x *LanguageIndex) QueryByBook(bookID string, k int, excluded map[string]struct{}) ([]Neighbor, error) {
	i, ok := x.byID[bookID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeNotFound, "vector: book not in index: "+bookID)
	}
	ex := make(map[string]struct{}, len(excluded)+1)
	for id := range excluded {
		ex[id] = struct{}{}
	}
	ex[bookID] = struct{}{}
	return x.Query(x.vecs[i], k, ex)
}

// Vector 返回某本在库图书的向量（profile 召回聚合用）。
func (x *LanguageIndex) Vector(bookID string) ([]float64, bool) {
	i, ok := x.byID[bookID]
	if !ok {
		return nil, false
	}
	return x.vecs[i], true
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
