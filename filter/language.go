package filter

import (
	"context"
	"sync"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
)

// Language 按请求的语言集合过滤候选。
// 内容/热门召回的候选自带 language label；协同候选没有语言信息，
// 在 Prepare 阶段回源目录补齐后做事后过滤。
type Language struct {
	Catalog core.Catalog

	mu    sync.RWMutex
	langs map[string]string // book ID -> normalized language
}

func NewLanguage(catalog core.Catalog) *Language {
	return &Language{Catalog: catalog, langs: make(map[string]string)}
}

func (f *Language) Name() string { return "filter.language" }

func (f *Language) Prepare(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) error {
	if rctx == nil || len(rctx.Languages) == 0 {
		return nil
	}

	var missing []string
	for _, it := range items {
		if it == nil || it.Label(core.LabelLanguage) != "" {
			continue
		}
		f.mu.RLock()
		_, known := f.langs[it.ID]
		f.mu.RUnlock()
		if !known {
			missing = append(missing, it.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	books, err := f.Catalog.GetBooksByIDs(ctx, missing)
	if err != nil {
		return core.ErrCatalogUnavailable
	}
	f.mu.Lock()
	for id, b := range books {
		f.langs[id] = b.NormalizedLanguage()
	}
	f.mu.Unlock()

	// 顺手把语言写进 label，下游 rerank/归因不用再查
	for _, it := range items {
		if it == nil || it.Label(core.LabelLanguage) != "" {
			continue
		}
		f.mu.RLock()
		lang, ok := f.langs[it.ID]
		f.mu.RUnlock()
		if ok {
			it.PutLabel(core.LabelLanguage, utils.Label{Value: lang, Source: "filter"})
		}
	}
	return nil
}

func (f *Language) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil || len(rctx.Languages) == 0 {
		return false, nil
	}

	lang := item.Label(core.LabelLanguage)
	if lang == "" {
		f.mu.RLock()
		lang = f.langs[item.ID]
		f.mu.RUnlock()
	}
	if lang == "" {
		// 目录里查不到语言的候选按不匹配处理
		return true, nil
	}
	return !rctx.WantsLanguage(lang), nil
}

var _ Filter = (*Language)(nil)
var _ Preparer = (*Language)(nil)
