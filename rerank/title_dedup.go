package rerank

import (
	"context"
	"strings"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// TitleDedup 折叠同名图书（大小写不敏感的精确匹配），
// 同一标题只保留排序靠前的那本——同一本书的不同版次
// 在目录里是不同 ID，不去重会挤占结果位。
type TitleDedup struct {
	Catalog core.Catalog
}

func (n *TitleDedup) Name() string        { return "rerank.title_dedup" }
func (n *TitleDedup) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TitleDedup) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) <= 1 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	books, err := n.Catalog.GetBooksByIDs(ctx, ids)
	if err != nil {
		return nil, core.ErrCatalogUnavailable
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		book, ok := books[it.ID]
		if !ok {
			// 目录里已经不存在的书直接丢弃
			continue
		}
		key := strings.ToLower(strings.TrimSpace(book.Title))
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, it)
	}
	return out, nil
}
