// Package factor 实现隐式反馈的交替最小二乘（ALS）协同模型：
// 行为加权 + 时间衰减构造置信度矩阵，训练出用户/物品因子，
// 提供点积排序预测与用户余弦相似查询。
package factor

import (
	"math"
	"sort"
	"time"

	"github.com/rushteam/bookrec/core"
)

// 行为置信度默认权重。dislike 不参与分解，
// 而是进入压制集合，在预测阶段硬排除。
const (
	DefaultLikeWeight   = 3.0
	DefaultSearchWeight = 1.0
	DefaultHalfLifeDays = 90.0
)

// ConfidenceParams 控制交互事件到置信度权重的映射。
// 字段导出，零值走默认值。
type ConfidenceParams struct {
	// LikeWeight like 行为的基础权重
	LikeWeight float64
	// SearchWeight search 行为的基础权重
	SearchWeight float64
	// HalfLifeDays 指数时间衰减的半衰期（天）；<0 关闭衰减
	HalfLifeDays float64
	// Now 衰减基准时刻；零值取当前时间（测试注入用）
	Now time.Time
}

func (p ConfidenceParams) likeWeight() float64 {
	if p.LikeWeight > 0 {
		return p.LikeWeight
	}
	return DefaultLikeWeight
}

func (p ConfidenceParams) searchWeight() float64 {
	if p.SearchWeight > 0 {
		return p.SearchWeight
	}
	return DefaultSearchWeight
}

func (p ConfidenceParams) halfLife() float64 {
	if p.HalfLifeDays != 0 {
		return p.HalfLifeDays
	}
	return DefaultHalfLifeDays
}

func (p ConfidenceParams) now() time.Time {
	if !p.Now.IsZero() {
		return p.Now
	}
	return time.Now()
}

// weight 计算单条事件的置信度贡献；dislike 返回 0（由压制集合处理）。
func (p ConfidenceParams) weight(in *core.Interaction) float64 {
	var base float64
	switch in.Action {
	case core.ActionLike:
		base = p.likeWeight()
	case core.ActionSearch:
		base = p.searchWeight()
	default:
		return 0
	}

	hl := p.halfLife()
	if hl < 0 || in.Timestamp.IsZero() {
		return base
	}
	ageDays := p.now().Sub(in.Timestamp).Hours() / 24
	if ageDays <= 0 {
		return base
	}
	return base * math.Exp(-math.Ln2*ageDays/hl)
}

// matrix 是稀疏的用户×物品置信度矩阵及其索引。
type matrix struct {
	userIDs []string
	itemIDs []string
	users   map[string]int
	items   map[string]int

	// rows[u] = item index -> accumulated weight
	rows []map[int]float64

	// interacted[u] 用户触达过的全部 item（含 dislike），预测时排除
	interacted []map[int]struct{}

	// suppressed[u] dislike 压制集合
	suppressed []map[int]struct{}
}

// buildMatrix 由交互快照构造置信度矩阵。
// user/item 的下标分配按 ID 字典序，保证同一快照构造结果确定。
func buildMatrix(interactions []*core.Interaction, params ConfidenceParams) *matrix {
	userSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for _, in := range interactions {
		if in == nil || in.UserID == "" || in.BookID == "" {
			continue
		}
		userSet[in.UserID] = struct{}{}
		itemSet[in.BookID] = struct{}{}
	}

	m := &matrix{
		userIDs: sortedKeys(userSet),
		itemIDs: sortedKeys(itemSet),
	}
	m.users = make(map[string]int, len(m.userIDs))
	for i, id := range m.userIDs {
		m.users[id] = i
	}
	m.items = make(map[string]int, len(m.itemIDs))
	for i, id := range m.itemIDs {
		m.items[id] = i
	}

	m.rows = make([]map[int]float64, len(m.userIDs))
	m.interacted = make([]map[int]struct{}, len(m.userIDs))
	m.suppressed = make([]map[int]struct{}, len(m.userIDs))
	for i := range m.rows {
		m.rows[i] = make(map[int]float64)
		m.interacted[i] = make(map[int]struct{})
		m.suppressed[i] = make(map[int]struct{})
	}

	for _, in := range interactions {
		if in == nil || in.UserID == "" || in.BookID == "" {
			continue
		}
		u := m.users[in.UserID]
		i := m.items[in.BookID]
		m.interacted[u][i] = struct{}{}
		if in.Action == core.ActionDislike {
			m.suppressed[u][i] = struct{}{}
			continue
		}
		if w := params.weight(in); w > 0 {
			m.rows[u][i] += w
		}
	}
	return m
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
