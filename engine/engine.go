package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rushteam/bookrec/cache"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/factor"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/rank"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/rerank"
	"github.com/rushteam/bookrec/vector"
)

// Engine 默认参数。
const (
	DefaultLimit            = 10
	DefaultRetrainThreshold = 10
	DefaultContentBudget    = 300 * time.Millisecond
)

// Recommendation 是对外返回的一条推荐：图书 ID、融合分与推荐理由。
type Recommendation struct {
	BookID    string  `json:"book_id"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	Language  string  `json:"language,omitempty"`
}

// Options 是 Engine 的行为参数，零值字段走默认值。
type Options struct {
	// Limit 默认返回条数
	Limit int
	// RetrainThreshold 未入模用户触发重训的累计交互阈值
	RetrainThreshold int
	// MaxLanguages 语言偏好的上限（声明与推断共用）
	MaxLanguages int
	// MinLanguageCount 从阅读历史推断语言时的最小 like 次数
	MinLanguageCount int
	// ContentBudget 内容召回（含惰性索引构建）的延迟预算，
	// 超时降级到其余召回源/热门分支
	ContentBudget time.Duration
	// FusionWeights 各召回源的融合权重（key 为召回源名）
	FusionWeights map[string]float64
	// SurfacedWindow 已曝光压制窗口（秒），零值走 filter 包默认值
	SurfacedWindow int
	// CollaborativeLimit / ContentLimit / PopularityLimit
	// 各召回源的候选数，零值走各自默认值
	CollaborativeLimit int
	ContentLimit       int
	PopularityLimit    int
	// ContentMode 内容召回策略，零值走 seed 模式
	ContentMode recall.ContentMode
}

// Config 装配 Engine 所需的全部协作方。
// Catalog 与 Interactions 必填，其余缺省时对应能力降级：
//   - Store 为空：不启用结果缓存与已曝光压制
//   - Preferences 为空：语言偏好只从阅读历史推断
//   - Trainer / Features 为空：使用零值默认参数
type Config struct {
	Catalog      core.Catalog
	Interactions core.InteractionStore
	Preferences  core.UserPreferenceStore
	Store        core.Store
	Trainer      *factor.Trainer
	Features     *feature.Pipeline
	Vector       vector.Options
	Options      Options
}

// Engine 是推荐编排层：持有模型/特征/索引快照，
// 按用户信号在协同、内容、热门三条分支间选路，
// 并把召回→过滤→融合→重排的链路组装成 pipeline 执行。
type Engine struct {
	catalog      core.Catalog
	interactions core.InteractionStore
	prefs        core.UserPreferenceStore
	store        core.Store
	kv           core.KeyValueStore
	cache        *cache.Cache
	trainer      *factor.Trainer
	features     *feature.Pipeline
	vecOpts      vector.Options
	opts         Options

	model    core.Snapshot[factor.Model]
	fitted   core.Snapshot[feature.Fitted]
	vectors  *vector.Manager
	surfaced *filter.Surfaced
	lastRun  core.Snapshot[TrainResult]

	trainMu sync.Mutex
}

// New 按 Config 装配 Engine。
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: catalog is required")
	}
	if cfg.Interactions == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: interaction store is required")
	}

	e := &Engine{
		catalog:      cfg.Catalog,
		interactions: cfg.Interactions,
		prefs:        cfg.Preferences,
		store:        cfg.Store,
		trainer:      cfg.Trainer,
		features:     cfg.Features,
		vecOpts:      cfg.Vector,
		opts:         cfg.Options,
	}
	if e.trainer == nil {
		e.trainer = &factor.Trainer{}
	}
	if e.features == nil {
		e.features = feature.NewPipeline()
	}
	if cfg.Store != nil {
		e.cache = cache.New(cfg.Store)
		e.surfaced = filter.NewSurfaced(cfg.Store)
		e.surfaced.WindowSeconds = int64(cfg.Options.SurfacedWindow)
		if kv, ok := cfg.Store.(core.KeyValueStore); ok {
			e.kv = kv
		}
	}
	e.vectors = vector.NewManager(e.buildLanguageIndex)
	return e, nil
}

func (e *Engine) limit() int {
	if e.opts.Limit > 0 {
		return e.opts.Limit
	}
	return DefaultLimit
}

func (e *Engine) retrainThreshold() int {
	if e.opts.RetrainThreshold > 0 {
		return e.opts.RetrainThreshold
	}
	return DefaultRetrainThreshold
}

func (e *Engine) contentBudget() time.Duration {
	if e.opts.ContentBudget > 0 {
		return e.opts.ContentBudget
	}
	return DefaultContentBudget
}

// buildLanguageIndex 是 vector.Manager 的构建回调：
// 目录取该语言全量语料 → 特征管线向量化 → 建索引。
// 特征管线未拟合时索引无从谈起，返回模型未训练错误走降级。
func (e *Engine) buildLanguageIndex(ctx context.Context, language string) (*vector.LanguageIndex, error) {
	fitted := e.fitted.Load()
	if fitted == nil {
		return nil, core.ErrModelNotTrained
	}
	books, err := e.catalog.GetAllBooks(ctx, language)
	if err != nil {
		return nil, core.ErrCatalogUnavailable
	}
	vecs, err := fitted.VectorizeBatch(books)
	if err != nil {
		return nil, err
	}
	return vector.Build(language, vecs, e.vecOpts)
}

// Recommend 返回 userID 的个性化推荐。
// limit<=0 走默认条数；languages 显式指定语言范围，
// 缺省时由声明偏好/阅读历史解析（见 languages.go）。
func (e *Engine) Recommend(ctx context.Context, userID string, limit int, languages ...string) ([]Recommendation, error) {
	if limit <= 0 {
		limit = e.limit()
	}
	langs, err := e.resolveLanguages(ctx, userID, languages)
	if err != nil {
		return nil, err
	}
	rctx := &core.RecommendContext{UserID: userID, Languages: langs, Size: limit}

	if e.cache == nil {
		return e.recommend(ctx, rctx)
	}
	key := cache.Key("recommend", userID, map[string]any{
		"limit":     strconv.Itoa(limit),
		"languages": strings.Join(langs, ","),
	})
	payload, err := e.cache.GetOrComputeUser(ctx, userID, key, cache.ClassRecommendations, func(ctx context.Context) ([]byte, error) {
		recs, err := e.recommend(ctx, rctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(recs)
	})
	if err != nil {
		return nil, err
	}
	var recs []Recommendation
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeInternalError, "engine: corrupt cached recommendations")
	}
	return recs, nil
}

type branch int

const (
	branchFused branch = iota // 协同 + 内容，融合排序
	branchCollaborative
	branchContent
	branchPopularity
)

// pickBranch 按用户信号选路：
//   - 模型里有该用户且有 like 历史 → 协同+内容融合
//   - 只在模型里（如纯 search 历史）→ 协同分支
//   - 只有 like 历史 → 内容分支
//   - 都没有 → 热门兜底
//
// 个性化信号可用时绝不跳级到更不个性化的层。
func (e *Engine) pickBranch(ctx context.Context, userID string) branch {
	if userID == "" {
		return branchPopularity
	}
	likes := e.likeCount(ctx, userID)
	model := e.model.Load()
	inModel := model != nil && model.HasUser(userID)
	switch {
	case inModel && likes > 0:
		return branchFused
	case inModel:
		return branchCollaborative
	case likes > 0:
		return branchContent
	default:
		return branchPopularity
	}
}

func (e *Engine) likeCount(ctx context.Context, userID string) int {
	history, err := e.interactions.GetInteractions(ctx, userID)
	if err != nil {
		return 0
	}
	n := 0
	for _, it := range history {
		if it.Action == core.ActionLike {
			n++
		}
	}
	return n
}

func (e *Engine) recommend(ctx context.Context, rctx *core.RecommendContext) ([]Recommendation, error) {
	b := e.pickBranch(ctx, rctx.UserID)
	items, err := e.runBranch(ctx, rctx, b)
	if err != nil {
		// 信号不可用的分支失败降级到热门；目录/存储硬错误原样上抛
		if b == branchPopularity || !core.IsRecoverable(err) {
			return nil, err
		}
		if items, err = e.runBranch(ctx, rctx, branchPopularity); err != nil {
			return nil, err
		}
	}
	if len(items) < rctx.Size && b != branchPopularity {
		items = e.backfill(ctx, rctx, items)
	}
	e.recordSurfaced(ctx, rctx.UserID, items)
	return toRecommendations(items), nil
}

// runBranch 组装并执行某条分支的完整 pipeline。
func (e *Engine) runBranch(ctx context.Context, rctx *core.RecommendContext, b branch) ([]*core.Item, error) {
	fanout := &recall.Fanout{
		Sources: e.sources(b),
		Dedup:   true,
		Timeout: e.contentBudget(),
	}
	filters := []filter.Filter{filter.NewLanguage(e.catalog)}
	if rctx.UserID != "" {
		filters = append(filters, filter.NewInteracted(e.interactions))
		if e.surfaced != nil {
			filters = append(filters, e.surfaced)
		}
	}
	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		fanout,
		&filter.FilterNode{Filters: filters},
		&rank.FusionNode{Weights: e.opts.FusionWeights},
		&rerank.TitleDedup{Catalog: e.catalog},
		&rerank.TopNNode{N: rctx.Size},
	}}
	return p.Run(ctx, rctx, nil)
}

func (e *Engine) sources(b branch) []recall.Source {
	content := &recall.Content{
		Manager:      e.vectors,
		Interactions: e.interactions,
		Catalog:      e.catalog,
		Mode:         e.opts.ContentMode,
		Limit:        e.opts.ContentLimit,
	}
	collaborative := &recall.Collaborative{Snapshot: &e.model, Limit: e.opts.CollaborativeLimit}
	switch b {
	case branchFused:
		return []recall.Source{collaborative, content}
	case branchCollaborative:
		return []recall.Source{collaborative}
	case branchContent:
		return []recall.Source{content}
	default:
		return []recall.Source{&recall.Popularity{Catalog: e.catalog, KV: e.kv, Limit: e.opts.PopularityLimit}}
	}
}

// backfill 用热门分支补齐不足的条数；补齐失败不影响已有结果。
func (e *Engine) backfill(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) []*core.Item {
	more, err := e.runBranch(ctx, rctx, branchPopularity)
	if err != nil {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
	}
	for _, it := range more {
		if len(items) >= rctx.Size {
			break
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		items = append(items, it)
	}
	return items
}

// recordSurfaced 把本次返回的条目写入已曝光窗口。
// 记录失败只影响后续压制效果，不影响本次返回。
func (e *Engine) recordSurfaced(ctx context.Context, userID string, items []*core.Item) {
	if e.surfaced == nil || userID == "" || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	_ = e.surfaced.Record(ctx, userID, ids)
}

func toRecommendations(items []*core.Item) []Recommendation {
	recs := make([]Recommendation, 0, len(items))
	for _, it := range items {
		recs = append(recs, Recommendation{
			BookID:    it.ID,
			Score:     it.Score,
			Rationale: it.Label(core.LabelRationale),
			Language:  it.Label(core.LabelLanguage),
		})
	}
	return recs
}

// SimilarTo 返回与 bookID 内容最相近的 k 本书（种子自身总被排除）。
// language 缺省时取种子图书自身的语言。
func (e *Engine) SimilarTo(ctx context.Context, bookID, language string, k int) ([]Recommendation, error) {
	if bookID == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: book id is required")
	}
	if k <= 0 {
		k = e.limit()
	}
	if language == "" {
		books, err := e.catalog.GetBooksByIDs(ctx, []string{bookID})
		if err != nil {
			return nil, core.ErrCatalogUnavailable
		}
		book, ok := books[bookID]
		if !ok {
			return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "catalog: book not found: "+bookID)
		}
		language = book.NormalizedLanguage()
	} else {
		language = core.CanonicalLanguage(language)
	}

	compute := func(ctx context.Context) ([]byte, error) {
		idx, err := e.vectors.Get(ctx, language)
		if err != nil {
			return nil, err
		}
		neighbors, err := idx.QueryByBook(bookID, k, nil)
		if err != nil {
			return nil, err
		}
		recs := make([]Recommendation, 0, len(neighbors))
		for _, nb := range neighbors {
			recs = append(recs, Recommendation{
				BookID:    nb.BookID,
				Score:     nb.Score,
				Rationale: core.RationaleContent + " seed=" + bookID,
				Language:  language,
			})
		}
		return json.Marshal(recs)
	}

	var payload []byte
	var err error
	if e.cache == nil {
		payload, err = compute(ctx)
	} else {
		key := cache.Key("similar", "", map[string]any{"book": bookID, "language": language, "k": strconv.Itoa(k)})
		payload, err = e.cache.GetOrCompute(ctx, key, cache.ClassRecommendations, compute)
	}
	if err != nil {
		return nil, err
	}
	var recs []Recommendation
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeInternalError, "engine: corrupt cached neighbors")
	}
	return recs, nil
}

// InvalidateUserCache 失效某个用户的全部缓存条目。
func (e *Engine) InvalidateUserCache(ctx context.Context, userID string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx, userID)
}
