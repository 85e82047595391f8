package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
)

// 热门召回默认参数。
const (
	DefaultPopularityLimit = 50
	PopularityKeyPrefix    = "popular"
)

// Popularity 是热门兜底召回源：
//   - 如果配置了 KeyValueStore，优先读取有序集合榜单
//     （key 为 popular:<language>，全局榜为 popular:all）
//   - 榜单为空或读取失败时回源目录的流行度排序
//
// 目录失败是硬错误，原样向上传播。
type Popularity struct {
	// Catalog 图书目录（必填，最后一层数据源）
	Catalog core.Catalog
	// KV 可选的榜单缓存后端
	KV core.KeyValueStore
	// Limit 候选数，零值走默认值
	Limit int
}

func (r *Popularity) Name() string { return "recall.popularity" }

func (r *Popularity) limit() int {
	if r.Limit > 0 {
		return r.Limit
	}
	return DefaultPopularityLimit
}

func (r *Popularity) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	langs := rctx.Languages
	if len(langs) == 0 {
		langs = []string{"all"}
	}

	var out []*core.Item
	for _, lang := range langs {
		items, err := r.recallLanguage(ctx, lang)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (r *Popularity) recallLanguage(ctx context.Context, lang string) ([]*core.Item, error) {
	// 榜单缓存优先
	if r.KV != nil {
		members, err := r.KV.ZRange(ctx, PopularityKeyPrefix+":"+lang, 0, int64(r.limit())-1)
		if err == nil && len(members) > 0 {
			return r.toItems(members, lang), nil
		}
	}

	catalogLang := lang
	if catalogLang == "all" {
		catalogLang = ""
	}
	books, err := r.Catalog.GetPopularityRanked(ctx, catalogLang, r.limit())
	if err != nil {
		return nil, core.ErrCatalogUnavailable
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return r.toItems(ids, lang), nil
}

func (r *Popularity) toItems(ids []string, lang string) []*core.Item {
	items := make([]*core.Item, 0, len(ids))
	// 榜单本身有序，分数按名次线性衰减，供融合阶段归一使用
	for i, id := range ids {
		it := core.NewItem(id)
		it.Score = 1.0 - float64(i)/float64(len(ids))
		it.PutLabel(core.LabelRecallSource, utils.Label{Value: r.Name(), Source: "recall"})
		it.PutLabel(core.LabelRationale, utils.Label{Value: core.RationalePopularity, Source: "recall"})
		if lang != "all" {
			it.PutLabel(core.LabelLanguage, utils.Label{Value: lang, Source: "recall"})
		}
		items = append(items, it)
	}
	return items
}

// WarmPopularity 把目录的流行度榜单写入 KV 有序集合，
// 供后续请求直接走缓存路径。训练流水线在重建后调用。
func WarmPopularity(ctx context.Context, catalog core.Catalog, kv core.KeyValueStore, languages []string, limit int) error {
	if kv == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultPopularityLimit
	}

	warm := func(lang, key string) error {
		catalogLang := lang
		if catalogLang == "all" {
			catalogLang = ""
		}
		books, err := catalog.GetPopularityRanked(ctx, catalogLang, limit)
		if err != nil {
			return err
		}
		for _, b := range books {
			if err := kv.ZAdd(ctx, key, b.PopularityScore, b.ID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := warm("all", PopularityKeyPrefix+":all"); err != nil {
		return err
	}
	for _, lang := range languages {
		if err := warm(lang, PopularityKeyPrefix+":"+lang); err != nil {
			return err
		}
	}
	return nil
}
