package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/recall"
)

// TrainResult 是一次全量训练的摘要（Health 也会引用最近一次）。
type TrainResult struct {
	Users          int           `json:"users"`
	Items          int           `json:"items"`
	Books          int           `json:"books"`
	Languages      []string      `json:"languages"`
	FeatureVersion string        `json:"feature_version"`
	Duration       time.Duration `json:"duration"`
	TrainedAt      time.Time     `json:"trained_at"`
}

// Train 全量重训：拟合特征管线、训练因子模型、原子换入快照，
// 然后刷新常驻索引、整体失效结果缓存并预热热门榜单。
//
// 串行化且失败安全：任一步失败则不换入任何快照，
// 旧模型/旧索引继续服务（stale-but-valid）。
func (e *Engine) Train(ctx context.Context) (*TrainResult, error) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	start := time.Now()

	books, err := e.catalog.GetAllBooks(ctx, "")
	if err != nil {
		return nil, core.ErrCatalogUnavailable
	}
	interactions, err := e.interactions.GetInteractions(ctx, "")
	if err != nil {
		return nil, err
	}

	fitted, err := e.features.Fit(books)
	if err != nil {
		return nil, err
	}

	popularity := make(map[string]float64, len(books))
	for _, b := range books {
		popularity[b.ID] = b.PopularityScore
	}
	model, err := e.trainer.Train(ctx, interactions, popularity)
	if err != nil {
		if err != core.ErrModelNotTrained {
			return nil, err
		}
		// 还没有任何正反馈：协同信号缺席不阻塞特征制品换入，
		// 旧模型（如有）继续服务
		model = e.model.Load()
	}

	e.fitted.Swap(fitted)
	if model != nil {
		e.model.Swap(model)
	}

	// 常驻语言索引就地重建；单个语言重建失败继续服务旧索引
	for _, lang := range e.vectors.Languages() {
		_ = e.vectors.Refresh(ctx, lang)
	}
	if e.cache != nil {
		e.cache.InvalidateAll()
	}

	langs := corpusLanguages(books)
	if e.kv != nil {
		// 榜单预热是尽力而为，失败时热门召回会回源目录
		_ = recall.WarmPopularity(ctx, e.catalog, e.kv, langs, e.opts.PopularityLimit)
	}

	result := &TrainResult{
		Books:          len(books),
		Languages:      langs,
		FeatureVersion: fitted.Version,
		Duration:       time.Since(start),
		TrainedAt:      start,
	}
	if model != nil {
		result.Users = model.UserCount()
		result.Items = model.ItemCount()
	}
	e.lastRun.Swap(result)
	return result, nil
}

// RefreshIndex 重建指定语言的向量索引；不传语言时重建全部常驻索引。
// 重建失败返回错误，期间旧索引持续可查。
func (e *Engine) RefreshIndex(ctx context.Context, languages ...string) error {
	if len(languages) == 0 {
		languages = e.vectors.Languages()
	}
	for _, lang := range languages {
		if err := e.vectors.Refresh(ctx, CanonicalLanguage(lang)); err != nil {
			return err
		}
	}
	return nil
}

// NotifyInteraction 在外部写入一条交互事件后调用：
// 失效该用户的结果缓存，并在未入模用户累计交互达到阈值时触发重训。
// 计数读取失败不阻塞写入路径。
func (e *Engine) NotifyInteraction(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if e.cache != nil {
		_ = e.cache.Invalidate(ctx, userID)
	}
	model := e.model.Load()
	if model != nil && model.HasUser(userID) {
		return nil
	}
	counts, err := e.interactions.GetInteractionCounts(ctx)
	if err != nil {
		return nil
	}
	if counts[userID] < e.retrainThreshold() {
		return nil
	}
	_, err = e.Train(ctx)
	return err
}

func corpusLanguages(books []*core.Book) []string {
	set := make(map[string]struct{})
	for _, b := range books {
		if lang := b.NormalizedLanguage(); lang != "" {
			set[lang] = struct{}{}
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
