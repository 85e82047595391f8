package recall

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
	"github.com/rushteam/bookrec/vector"
)

// 内容召回默认参数。
const (
	DefaultContentLimit    = 30
	DefaultDislikePushAway = 0.3 // profile 向量被 dislike 均值推离的系数
)

// ContentMode 选择内容召回的策略。
type ContentMode string

const (
	// ModeSeed 以最近一次 like + 随机一次历史 like 为种子做近邻查询
	ModeSeed ContentMode = "seed"
	// ModeProfile 聚合全部 like 向量为兴趣画像，再被 dislike 均值推离
	ModeProfile ContentMode = "profile"
)

// Content 是内容相似召回源：基于按语言分片的向量索引。
// 用户没有任何 like 时返回空结果（零信号不是错误）。
type Content struct {
	// Manager 按语言持有向量索引
	Manager *vector.Manager
	// Interactions 交互事件读取
	Interactions core.InteractionStore
	// Catalog 用于解析种子图书的语言
	Catalog core.Catalog
	// Mode 召回策略，零值走 ModeSeed
	Mode ContentMode
	// Limit 每个种子/画像的候选数，零值走默认值
	Limit int
	// DislikePushAway profile 模式的推离系数，零值走默认值
	DislikePushAway float64
	// Seed 随机种子选取的确定性种子（测试注入用）；零值走随机
	Seed int64

	rngOnce sync.Once
	rng     *rand.Rand
}

func (r *Content) Name() string { return "recall.content" }

func (r *Content) limit() int {
	if r.Limit > 0 {
		return r.Limit
	}
	return DefaultContentLimit
}

func (r *Content) pushAway() float64 {
	if r.DislikePushAway > 0 {
		return r.DislikePushAway
	}
	return DefaultDislikePushAway
}

func (r *Content) random(n int) int {
	r.rngOnce.Do(func() {
		if r.Seed != 0 {
			r.rng = rand.New(rand.NewSource(r.Seed))
		} else {
			r.rng = rand.New(rand.NewSource(rand.Int63()))
		}
	})
	return r.rng.Intn(n)
}

func (r *Content) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	history, err := r.Interactions.GetInteractions(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}

	var likes, dislikes []*core.Interaction
	excluded := make(map[string]struct{}, len(history))
	for _, in := range history {
		excluded[in.BookID] = struct{}{}
		switch in.Action {
		case core.ActionLike:
			likes = append(likes, in)
		case core.ActionDislike:
			dislikes = append(dislikes, in)
		}
	}
	if len(likes) == 0 {
		return nil, nil
	}
	// 时间升序，最近的 like 在末尾
	sort.SliceStable(likes, func(i, j int) bool { return likes[i].Timestamp.Before(likes[j].Timestamp) })

	if r.Mode == ModeProfile {
		return r.profileRecall(ctx, rctx, likes, dislikes, excluded)
	}
	return r.seedRecall(ctx, rctx, likes, excluded)
}

// seedRecall 以最近 like 为主种子，再随机挑一本更早的 like 作为
// 次种子，增加结果的新鲜感。
func (r *Content) seedRecall(ctx context.Context, rctx *core.RecommendContext, likes []*core.Interaction, excluded map[string]struct{}) ([]*core.Item, error) {
	seeds := []string{likes[len(likes)-1].BookID}
	if len(likes) > 1 {
		prior := likes[:len(likes)-1]
		alt := prior[r.random(len(prior))].BookID
		if alt != seeds[0] {
			seeds = append(seeds, alt)
		}
	}

	books, err := r.Catalog.GetBooksByIDs(ctx, seeds)
	if err != nil {
		return nil, err
	}

	var out []*core.Item
	for _, seedID := range seeds {
		book, ok := books[seedID]
		if !ok {
			continue
		}
		lang := book.NormalizedLanguage()
		if !rctx.WantsLanguage(lang) {
			continue
		}

		idx, err := r.Manager.Get(ctx, lang)
		if err != nil {
			if core.IsRecoverable(err) {
				continue
			}
			return nil, err
		}
		neighbors, err := idx.QueryByBook(seedID, r.limit(), excluded)
		if err != nil {
			if core.IsRecoverable(err) {
				continue
			}
			return nil, err
		}
		out = append(out, r.toItems(neighbors, core.RationaleContent+" seed="+seedID, lang)...)
	}
	return out, nil
}

// profileRecall 对每种在域语言聚合 like 向量均值，
// 再减去 pushAway 倍的 dislike 向量均值，用画像向量查询近邻。
func (r *Content) profileRecall(ctx context.Context, rctx *core.RecommendContext, likes, dislikes []*core.Interaction, excluded map[string]struct{}) ([]*core.Item, error) {
	ids := make([]string, 0, len(likes)+len(dislikes))
	for _, in := range likes {
		ids = append(ids, in.BookID)
	}
	for _, in := range dislikes {
		ids = append(ids, in.BookID)
	}
	books, err := r.Catalog.GetBooksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// 语言 -> like/dislike 书 ID
	likedBy := make(map[string][]string)
	dislikedBy := make(map[string][]string)
	for _, in := range likes {
		if b, ok := books[in.BookID]; ok {
			lang := b.NormalizedLanguage()
			likedBy[lang] = append(likedBy[lang], in.BookID)
		}
	}
	for _, in := range dislikes {
		if b, ok := books[in.BookID]; ok {
			lang := b.NormalizedLanguage()
			dislikedBy[lang] = append(dislikedBy[lang], in.BookID)
		}
	}

	langs := make([]string, 0, len(likedBy))
	for lang := range likedBy {
		if rctx.WantsLanguage(lang) {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)

	var out []*core.Item
	for _, lang := range langs {
		idx, err := r.Manager.Get(ctx, lang)
		if err != nil {
			if core.IsRecoverable(err) {
				continue
			}
			return nil, err
		}

		profile := meanVector(idx, likedBy[lang])
		if profile == nil {
			continue
		}
		if avoid := meanVector(idx, dislikedBy[lang]); avoid != nil {
			for i := range profile {
				profile[i] -= r.pushAway() * avoid[i]
			}
		}
		normalize(profile)

		neighbors, err := idx.Query(profile, r.limit(), excluded)
		if err != nil {
			continue
		}
		out = append(out, r.toItems(neighbors, core.RationaleContent, lang)...)
	}
	return out, nil
}

func (r *Content) toItems(neighbors []vector.Neighbor, rationale, lang string) []*core.Item {
	items := make([]*core.Item, 0, len(neighbors))
	for _, n := range neighbors {
		it := core.NewItem(n.BookID)
		it.Score = n.Score
		it.PutLabel(core.LabelRecallSource, utils.Label{Value: r.Name(), Source: "recall"})
		it.PutLabel(core.LabelRationale, utils.Label{Value: rationale, Source: "recall"})
		it.PutLabel(core.LabelLanguage, utils.Label{Value: lang, Source: "recall"})
		items = append(items, it)
	}
	return items
}

// meanVector 对在索引中的书取向量均值；一个都不在库时返回 nil。
func meanVector(idx *vector.LanguageIndex, ids []string) []float64 {
	var sum []float64
	count := 0
	for _, id := range ids {
		v, ok := idx.Vector(id)
		if !ok {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		for i, x := range v {
			sum[i] += x
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum
}

func normalize(v []float64) {
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
