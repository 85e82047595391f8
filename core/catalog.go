package core

import "context"

// Catalog 是图书目录的只读访问接口，由外部协作方实现。
//
// 这是推荐核心唯一没有降级数据源的依赖：目录不可用时
// 错误按 ErrCatalogUnavailable 硬传播（见 errors.go 的传播策略）。
type Catalog interface {
	// GetBooksByIDs 按 ID 批量取书；缺失的 ID 不报错，直接不出现在结果里
	GetBooksByIDs(ctx context.Context, ids []string) (map[string]*Book, error)

	// GetAllBooks 取全量语料（可按语言过滤，language 为空表示全部），
	// 用于特征管线拟合与索引构建
	GetAllBooks(ctx context.Context, language string) ([]*Book, error)

	// GetPopularityRanked 按全局流行度降序取 TopN（可按语言过滤），
	// 是所有降级分支的最后一层
	GetPopularityRanked(ctx context.Context, language string, limit int) ([]*Book, error)
}

// InteractionStore 是交互事件存储的只读访问接口。
// 事件追加写入由外部协作方完成；核心只读快照（训练）与计数（重训触发）。
type InteractionStore interface {
	// GetInteractions 取某个用户的交互事件；userID 为空时返回全量快照（训练用）
	GetInteractions(ctx context.Context, userID string) ([]*Interaction, error)

	// GetInteractionCounts 返回每个用户的交互计数，用于重训阈值判断
	GetInteractionCounts(ctx context.Context) (map[string]int, error)
}

// UserPreferenceStore 是用户语言偏好的读取接口。
//
// 实现：
//   - feast.PreferenceStore 从在线特征库读（生产）
//   - engine 在其返回为空时退回阅读历史推断（engine/languages.go）
//   - store.MemoryCatalog 内置一个内存实现（测试/开发）
type UserPreferenceStore interface {
	// GetUserLanguages 返回用户声明的语言偏好（已小写规整）；
	// 没有声明时返回空切片，不是错误
	GetUserLanguages(ctx context.Context, userID string) ([]string, error)
}
