package core

import "github.com/rushteam/bookrec/pkg/utils"

// 标准 Label key：全链路透传，供 explain / 测试 / UI 归因使用。
const (
	LabelRecallSource = "recall_source" // 候选来自哪个召回源
	LabelRationale    = "rationale"     // 产生该结果的编排分支（§ 归因标签）
	LabelContentSeed  = "content_seed"  // 内容召回的种子书 ID
	LabelLanguage     = "language"      // 候选图书语言（语言过滤用）
)

// 归因标签取值：标记结果出自编排器的哪条分支。
const (
	RationaleCollaborative = "collaborative" // 协同分支
	RationaleContent       = "content"       // 内容相似分支
	RationalePopularity    = "popularity"    // 流行度兜底分支
)

// Item 是推荐链路中的统一承载结构：分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
// ID 是不透明的图书 ID（与 Book.ID 同域）。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Label 读取某个 key 的 Label 值，不存在时返回空串。
func (it *Item) Label(key string) string {
	if it.Labels == nil {
		return ""
	}
	return it.Labels[key].Value
}
