package vector

import (
	"math"
	"math/rand"
	"sort"
)

// ivfIndex 是 IVF 风格的分区索引：k-means 质心把语料切成 nlist 个
// 倒排桶，查询只扫描离 query 最近的 nprobe 个桶。
type ivfIndex struct {
	centroids [][]float64
	buckets   [][]int // 与 centroids 对齐的向量下标倒排表
}

// buildIVF 训练质心并分桶。nlist = √n，下限 DefaultMinNList。
func buildIVF(vecs [][]float64, opts Options) *ivfIndex {
	n := len(vecs)
	nlist := int(math.Sqrt(float64(n)))
	if nlist < DefaultMinNList {
		nlist = DefaultMinNList
	}
	if nlist > n {
		nlist = n
	}

	centroids := kmeans(vecs, nlist, opts.kmeansIterations(), opts.Seed)
	buckets := make([][]int, len(centroids))
	for i, v := range vecs {
		c := nearestCentroid(v, centroids)
		buckets[c] = append(buckets[c], i)
	}
	return &ivfIndex{centroids: centroids, buckets: buckets}
}

// probe 返回离 query 最近的 nprobe 个桶的向量下标集合。
func (x *ivfIndex) probe(query []float64, nprobe int) []int {
	if nprobe > len(x.centroids) {
		nprobe = len(x.centroids)
	}
	type cd struct {
		idx  int
		dist float64
	}
	ds := make([]cd, len(x.centroids))
	for i, c := range x.centroids {
		ds[i] = cd{idx: i, dist: sqDist(query, c)}
	}
	sort.Slice(ds, func(a, b int) bool { return ds[a].dist < ds[b].dist })

	var out []int
	for i := 0; i < nprobe; i++ {
		out = append(out, x.buckets[ds[i].idx]...)
	}
	return out
}

// kmeans 是确定性的 Lloyd 迭代：种子化的初始质心抽样，
// 空簇重置为离其质心最远的点。
func kmeans(vecs [][]float64, k, iterations int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed + int64(k)))
	dims := len(vecs[0])

	centroids := make([][]float64, k)
	perm := rng.Perm(len(vecs))
	for i := 0; i < k; i++ {
		c := make([]float64, dims)
		copy(c, vecs[perm[i]])
		centroids[i] = c
	}

	assign := make([]int, len(vecs))
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vecs {
			c := nearestCentroid(v, centroids)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for i := range next {
			next[i] = make([]float64, dims)
		}
		for i, v := range vecs {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				next[c][d] += x
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// 空簇：重置为任一点，避免质心塌缩
				copy(next[c], vecs[perm[c%len(perm)]])
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
		}
		centroids = next
	}
	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best, bestDist := 0, math.MaxFloat64
	for i, c := range centroids {
		if d := sqDist(v, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
