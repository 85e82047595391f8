package factor

import (
	"math"
	"sort"

	"github.com/rushteam/bookrec/core"
)

// DefaultMinUserSimilarity 是 SimilarUsers 的默认相似度下限。
const DefaultMinUserSimilarity = 0.5

// Model 是一次训练的不可变产物。训练完成后只读，
// 可被任意 goroutine 并发查询；整体替换由上层快照持有者完成。
type Model struct {
	userIDs []string
	itemIDs []string
	users   map[string]int
	items   map[string]int
	userF   [][]float64
	itemF   [][]float64

	interacted []map[int]struct{}
	suppressed []map[int]struct{}
	popularity map[string]float64
	minUserSim float64
}

// HasUser 判断用户是否在本次训练的矩阵中。
func (m *Model) HasUser(userID string) bool {
	_, ok := m.users[userID]
	return ok
}

// UserCount / ItemCount 供健康检查与训练报告使用。
func (m *Model) UserCount() int { return len(m.userIDs) }
func (m *Model) ItemCount() int { return len(m.itemIDs) }

// Predict 返回用户分数最高的 limit 个未触达物品。
//
// 排除规则：
//   - 用户触达过的物品（like/dislike/search 全部）
//   - dislike 压制集合（包含在 interacted 中，单独维护以便语义清晰）
//   - excluded 由调用方额外注入（如近期已曝光）
//
// 并列打破：流行度降序，再按 BookID 字典序，保证输出确定。
// 冷启动用户返回 ErrUserNotInModel，由编排层降级，不是失败。
func (m *Model) Predict(userID string, excluded map[string]struct{}, limit int) ([]*core.Item, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, core.ErrUserNotInModel
	}
	if limit <= 0 {
		limit = 10
	}

	uf := m.userF[u]
	type scored struct {
		idx   int
		score float64
	}
	candidates := make([]scored, 0, len(m.itemIDs))
	for i := range m.itemIDs {
		if _, seen := m.interacted[u][i]; seen {
			continue
		}
		if _, sup := m.suppressed[u][i]; sup {
			continue
		}
		if excluded != nil {
			if _, ex := excluded[m.itemIDs[i]]; ex {
				continue
			}
		}
		candidates = append(candidates, scored{idx: i, score: dot(uf, m.itemF[i])})
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		pa := m.popularity[m.itemIDs[ca.idx]]
		pb := m.popularity[m.itemIDs[cb.idx]]
		if pa != pb {
			return pa > pb
		}
		return m.itemIDs[ca.idx] < m.itemIDs[cb.idx]
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	items := make([]*core.Item, len(candidates))
	for i, c := range candidates {
		it := core.NewItem(m.itemIDs[c.idx])
		it.Score = c.score
		items[i] = it
	}
	return items, nil
}

// UserSimilarity 是一条用户相似度记录。
type UserSimilarity struct {
	UserID     string
	Similarity float64
}

// SimilarUsers 按用户因子余弦相似度返回 TopN 近邻，
// 低于下限的近邻被丢弃。冷启动用户返回 ErrUserNotInModel。
func (m *Model) SimilarUsers(userID string, limit int) ([]UserSimilarity, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, core.ErrUserNotInModel
	}
	if limit <= 0 {
		limit = 10
	}

	uf := m.userF[u]
	out := make([]UserSimilarity, 0, limit)
	for v, vf := range m.userF {
		if v == u {
			continue
		}
		sim := cosine(uf, vf)
		if sim < m.minUserSim {
			continue
		}
		out = append(out, UserSimilarity{UserID: m.userIDs[v], Similarity: sim})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return out[a].UserID < out[b].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float64) float64 {
	var dp, na, nb float64
	for i := range a {
		dp += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dp / (math.Sqrt(na) * math.Sqrt(nb))
}
