package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/factor"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/conv"
	"github.com/rushteam/bookrec/rank"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/rerank"
	"github.com/rushteam/bookrec/vector"
)

// Deps 注入配置文件无法表达的运行时协作方。
// 纯参数型 Node（rank.fusion、rerank.topn 等）不依赖它。
type Deps struct {
	Catalog      core.Catalog
	Interactions core.InteractionStore
	Store        core.Store
	KV           core.KeyValueStore
	Model        *core.Snapshot[factor.Model]
	Vectors      *vector.Manager
}

// Register 把内置 Node 的构建逻辑注册进 config 注册表。
// 需要在入口处（装配完 Deps 后）调用一次。
func Register(deps Deps) {
	config.Register("recall.fanout", buildFanoutNode(deps))
	config.Register("recall.popularity", buildPopularityNode(deps))
	config.Register("rank.fusion", BuildFusionNode)
	config.Register("filter", buildFilterNode(deps))
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.title_dedup", buildTitleDedupNode(deps))
}

func buildFanoutNode(deps Deps) config.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		sourcesConfig, ok := cfg["sources"].([]any)
		if !ok {
			return nil, fmt.Errorf("sources not found or invalid")
		}
		sources := make([]recall.Source, 0, len(sourcesConfig))
		for _, sc := range sourcesConfig {
			sourceMap, ok := sc.(map[string]any)
			if !ok {
				continue
			}
			source, err := buildSource(deps, sourceMap)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source)
		}
		fanout := &recall.Fanout{
			Sources: sources,
			Dedup:   conv.ConfigGet(cfg, "dedup", true),
		}
		if ms := conv.ConfigGetInt(cfg, "timeout_ms", 0); ms > 0 {
			fanout.Timeout = time.Duration(ms) * time.Millisecond
		}
		if n := conv.ConfigGetInt(cfg, "max_concurrent", 0); n > 0 {
			fanout.MaxConcurrent = n
		}
		return fanout, nil
	}
}

func buildSource(deps Deps, cfg map[string]any) (recall.Source, error) {
	switch sourceType := conv.ConfigGet(cfg, "type", ""); sourceType {
	case "collaborative":
		if deps.Model == nil {
			return nil, fmt.Errorf("collaborative source requires a model snapshot")
		}
		return &recall.Collaborative{
			Snapshot: deps.Model,
			Limit:    conv.ConfigGetInt(cfg, "limit", 0),
		}, nil
	case "content":
		if deps.Vectors == nil || deps.Catalog == nil || deps.Interactions == nil {
			return nil, fmt.Errorf("content source requires vectors, catalog and interactions")
		}
		return &recall.Content{
			Manager:         deps.Vectors,
			Interactions:    deps.Interactions,
			Catalog:         deps.Catalog,
			Mode:            recall.ContentMode(conv.ConfigGet(cfg, "mode", "")),
			Limit:           conv.ConfigGetInt(cfg, "limit", 0),
			DislikePushAway: conv.ConfigGetFloat64(cfg, "dislike_push_away", 0),
		}, nil
	case "popularity":
		if deps.Catalog == nil {
			return nil, fmt.Errorf("popularity source requires a catalog")
		}
		return &recall.Popularity{
			Catalog: deps.Catalog,
			KV:      deps.KV,
			Limit:   conv.ConfigGetInt(cfg, "limit", 0),
		}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", sourceType)
	}
}

func buildPopularityNode(deps Deps) config.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		source, err := buildSource(deps, map[string]any{"type": "popularity", "limit": cfg["limit"]})
		if err != nil {
			return nil, err
		}
		return &recall.Fanout{Sources: []recall.Source{source}}, nil
	}
}

// BuildFusionNode 纯参数构建：weights 按召回源名给权重。
func BuildFusionNode(cfg map[string]any) (pipeline.Node, error) {
	node := &rank.FusionNode{
		DefaultWeight: conv.ConfigGetFloat64(cfg, "default_weight", 0),
	}
	if weightsMap, ok := cfg["weights"].(map[string]any); ok {
		node.Weights = conv.MapToFloat64(weightsMap)
	}
	return node, nil
}

func buildFilterNode(deps Deps) config.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		filtersConfig, ok := cfg["filters"].([]any)
		if !ok {
			return nil, fmt.Errorf("filters not found or invalid")
		}
		filters := make([]filter.Filter, 0, len(filtersConfig))
		for _, fc := range filtersConfig {
			filterMap, ok := fc.(map[string]any)
			if !ok {
				continue
			}
			switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
			case "interacted":
				if deps.Interactions == nil {
					return nil, fmt.Errorf("interacted filter requires an interaction store")
				}
				filters = append(filters, filter.NewInteracted(deps.Interactions))
			case "surfaced":
				f := filter.NewSurfaced(deps.Store)
				f.WindowSeconds = int64(conv.ConfigGetInt(filterMap, "window_seconds", 0))
				filters = append(filters, f)
			case "language":
				if deps.Catalog == nil {
					return nil, fmt.Errorf("language filter requires a catalog")
				}
				filters = append(filters, filter.NewLanguage(deps.Catalog))
			case "rule":
				expr := conv.ConfigGet(filterMap, "expr", "")
				if expr == "" {
					return nil, fmt.Errorf("rule filter requires a non-empty expr")
				}
				f, err := filter.NewRule(expr)
				if err != nil {
					return nil, fmt.Errorf("compile rule filter: %w", err)
				}
				filters = append(filters, f)
			default:
				return nil, fmt.Errorf("unknown filter type: %s", filterType)
			}
		}
		return &filter.FilterNode{Filters: filters}, nil
	}
}

// BuildTopNNode 纯参数构建：n 为截断条数。
func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func buildTitleDedupNode(deps Deps) config.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		if deps.Catalog == nil {
			return nil, fmt.Errorf("title dedup requires a catalog")
		}
		return &rerank.TitleDedup{Catalog: deps.Catalog}, nil
	}
}
