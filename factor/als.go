package factor

import (
	"context"
	"math/rand"

	"github.com/rushteam/bookrec/core"
)

// ALS 默认超参数。
const (
	DefaultFactors        = 64
	DefaultIterations     = 50
	DefaultRegularization = 0.1
	DefaultAlpha          = 40.0
	DefaultSeed           = 7
)

// Trainer 是 ALS 训练器配置。字段导出，零值走默认值。
type Trainer struct {
	// Factors 因子维度
	Factors int
	// Iterations 交替迭代轮数
	Iterations int
	// Regularization L2 正则系数
	Regularization float64
	// Alpha 置信度缩放：c = 1 + Alpha * w
	Alpha float64
	// Seed 因子初始化种子，固定种子保证训练确定性
	Seed int64
	// Confidence 行为到权重的映射参数
	Confidence ConfidenceParams
	// MinUserSimilarity SimilarUsers 的相似度下限
	MinUserSimilarity float64
}

func (t *Trainer) factors() int {
	if t.Factors > 0 {
		return t.Factors
	}
	return DefaultFactors
}

func (t *Trainer) iterations() int {
	if t.Iterations > 0 {
		return t.Iterations
	}
	return DefaultIterations
}

func (t *Trainer) regularization() float64 {
	if t.Regularization > 0 {
		return t.Regularization
	}
	return DefaultRegularization
}

func (t *Trainer) alpha() float64 {
	if t.Alpha > 0 {
		return t.Alpha
	}
	return DefaultAlpha
}

func (t *Trainer) seed() int64 {
	if t.Seed != 0 {
		return t.Seed
	}
	return DefaultSeed
}

func (t *Trainer) minUserSimilarity() float64 {
	if t.MinUserSimilarity > 0 {
		return t.MinUserSimilarity
	}
	return DefaultMinUserSimilarity
}

// Train 在交互快照上训练因子模型。
// popularity 仅用于预测阶段的并列打破，可以为 nil。
// 快照没有任何正信号时返回 ErrModelNotTrained。
func (t *Trainer) Train(ctx context.Context, interactions []*core.Interaction, popularity map[string]float64) (*Model, error) {
	m := buildMatrix(interactions, t.Confidence)

	positives := 0
	for _, row := range m.rows {
		positives += len(row)
	}
	if positives == 0 {
		return nil, core.ErrModelNotTrained
	}

	f := t.factors()
	alpha := t.alpha()
	reg := t.regularization()

	rng := rand.New(rand.NewSource(t.seed()))
	userF := randomFactors(rng, len(m.userIDs), f)
	itemF := randomFactors(rng, len(m.itemIDs), f)

	// cols 是矩阵的转置视图，物品半步用
	cols := make([]map[int]float64, len(m.itemIDs))
	for i := range cols {
		cols[i] = make(map[int]float64)
	}
	for u, row := range m.rows {
		for i, w := range row {
			cols[i][u] = w
		}
	}

	for iter := 0; iter < t.iterations(); iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		solveHalf(userF, itemF, m.rows, alpha, reg)
		solveHalf(itemF, userF, cols, alpha, reg)
	}

	return &Model{
		userIDs:    m.userIDs,
		itemIDs:    m.itemIDs,
		users:      m.users,
		items:      m.items,
		userF:      userF,
		itemF:      itemF,
		interacted: m.interacted,
		suppressed: m.suppressed,
		popularity: popularity,
		minUserSim: t.minUserSimilarity(),
	}, nil
}

func randomFactors(rng *rand.Rand, n, f int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, f)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.01
		}
		out[i] = row
	}
	return out
}

// solveHalf 固定 fixed 一侧，逐行求解 target 一侧的最小二乘。
//
// 隐式反馈 ALS（Hu/Koren/Volinsky）：对每一行 u，
//   (YtY + Σ_i (c_ui - 1) y_i y_iᵀ + λI) x_u = Σ_i c_ui y_i
// 其中 c = 1 + alpha·w，求和只跑非零 w，复杂度与观测数线性相关。
func solveHalf(target, fixed [][]float64, rows []map[int]float64, alpha, reg float64) {
	f := len(fixed[0])

	// YtY 预计算一次
	yty := make([][]float64, f)
	for i := range yty {
		yty[i] = make([]float64, f)
	}
	for _, y := range fixed {
		for i := 0; i < f; i++ {
			yi := y[i]
			if yi == 0 {
				continue
			}
			for j := 0; j < f; j++ {
				yty[i][j] += yi * y[j]
			}
		}
	}

	a := make([][]float64, f)
	for i := range a {
		a[i] = make([]float64, f)
	}
	b := make([]float64, f)

	for u := range target {
		row := rows[u]
		if len(row) == 0 {
			continue
		}

		for i := 0; i < f; i++ {
			copy(a[i], yty[i])
			a[i][i] += reg
			b[i] = 0
		}

		for item, w := range row {
			c := 1 + alpha*w
			y := fixed[item]
			for i := 0; i < f; i++ {
				yi := y[i]
				b[i] += c * yi
				if yi == 0 {
					continue
				}
				ci := (c - 1) * yi
				for j := 0; j < f; j++ {
					a[i][j] += ci * y[j]
				}
			}
		}

		solveInPlace(a, b, target[u])
	}
}

// solveInPlace 用列主元高斯消元解 a·x = b，结果写入 x。
// a、b 在求解过程中被修改，调用方每行重新填充。
func solveInPlace(a [][]float64, b []float64, x []float64) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(a[r][col]) > abs(a[pivot][col]) {
				pivot = r
			}
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		p := a[col][col]
		if p == 0 {
			continue
		}
		for r := col + 1; r < n; r++ {
			factor := a[r][col] / p
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		if a[i][i] != 0 {
			x[i] = sum / a[i][i]
		} else {
			x[i] = 0
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
