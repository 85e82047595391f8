package core

import (
	"time"
)

// Action 是用户对图书的隐式反馈类型。
// 推荐引擎只消费这三种行为：like 是强正信号，search 是弱兴趣信号，
// dislike 不进入分解权重，而是在预测阶段做压制（见 factor 包）。
type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionSearch  Action = "search"
)

// Book 是图书目录中的一条记录。
// 由外部元数据采集方创建/更新，对推荐核心只读。
type Book struct {
	ID              string
	Title           string
	Author          string
	Genres          []string
	Language        string
	Year            int
	Summary         string
	PopularityScore float64
}

// Validate 在摄入边界做一次性校验；核心内部不再对字段缺失做分支
// （特征管线的中性默认值除外）。
func (b *Book) Validate() error {
	if b == nil || b.ID == "" {
		return NewDomainError(ModuleCatalog, ErrorCodeInvalidInput, "catalog: book id is required")
	}
	if b.Title == "" {
		return NewDomainError(ModuleCatalog, ErrorCodeInvalidInput, "catalog: book title is required")
	}
	return nil
}

// NormalizedLanguage 返回规范化的语言标识，作为 LanguageIndex 的 key。
func (b *Book) NormalizedLanguage() string {
	return CanonicalLanguage(b.Language)
}

// Interaction 是一条追加写入的交互事件，协同信号的唯一来源。
// 由外部交互存储持有；核心只在训练时读快照、在写入时触发缓存失效。
type Interaction struct {
	UserID    string
	BookID    string
	Action    Action
	Timestamp time.Time
}

// Validate 校验交互事件的必填字段与行为类型。
func (it *Interaction) Validate() error {
	if it == nil || it.UserID == "" || it.BookID == "" {
		return NewDomainError(ModuleCatalog, ErrorCodeInvalidInput, "interaction: user_id and book_id are required")
	}
	switch it.Action {
	case ActionLike, ActionDislike, ActionSearch:
		return nil
	default:
		return NewDomainError(ModuleCatalog, ErrorCodeInvalidInput, "interaction: unknown action "+string(it.Action))
	}
}

// ContentVector 是特征管线的产物：一本书的 L2 归一化稠密向量。
// 单位长度不变式使得内积等价于余弦相似度（vector 包依赖这一点）。
type ContentVector struct {
	BookID    string
	Language  string
	Embedding []float64
}
