package feature

import (
	"math"
	"math/rand"
)

// projection 是一次性拟合的随机高斯投影矩阵。
// 行优先存储 outDims × inDims；entries ~ N(0, 1/outDims)。
// 种子固定，同形状矩阵在任意进程上重建结果一致。
type projection struct {
	inDims  int
	outDims int
	rows    [][]float64
}

func newProjection(inDims, outDims int, seed int64) *projection {
	if inDims < outDims {
		// 低维语料不再升维，投影退化为恒等
		outDims = inDims
	}
	rng := rand.New(rand.NewSource(seed))
	scale := 1.0 / math.Sqrt(float64(outDims))
	rows := make([][]float64, outDims)
	for i := range rows {
		row := make([]float64, inDims)
		for j := range row {
			row[j] = rng.NormFloat64() * scale
		}
		rows[i] = row
	}
	return &projection{inDims: inDims, outDims: outDims, rows: rows}
}

func (p *projection) apply(raw []float64) []float64 {
	out := make([]float64, p.outDims)
	for i, row := range p.rows {
		var sum float64
		// raw 是稀疏向量的稠密表示，跳过零值减少乘法
		for j, v := range raw {
			if v != 0 {
				sum += row[j] * v
			}
		}
		out[i] = sum
	}
	return out
}

// l2Normalize 就地归一化为单位长度；零向量保持原样。
func l2Normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}
