package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 传播策略（对应错误分类学）：
//   - UNAVAILABLE / NOT_FOUND：信号不可用（模型未训练、索引未构建、冷启动用户），
//     由编排层的降级分支就地消化，永远不会抛给调用方
//   - INTERNAL_ERROR：训练/构建失败，记录后保留旧快照，调用方看到的是 stale-but-valid 结果
//   - 只有目录/存储本身不可用（ModuleCatalog 的 UNAVAILABLE）作为硬错误向上传播
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "factor", "vector"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务/信号不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // KV 存储模块
	ModuleFeature = "feature" // 特征管线模块
	ModuleFactor  = "factor"  // 协同分解模块
	ModuleVector  = "vector"  // 向量索引模块
	ModuleCache   = "cache"   // 结果缓存模块
	ModuleCatalog = "catalog" // 图书目录/交互存储模块
	ModuleEngine  = "engine"  // 推荐编排模块
)

// 常用领域错误（可直接用 == 比较，也可用 IsXXX 检查）
var (
	// ErrUserNotInModel 表示用户不在已训练的因子模型中（冷启动），
	// 是编排层的确定性降级触发器，不是失败。
	ErrUserNotInModel = NewDomainError(ModuleFactor, ErrorCodeUnavailable, "factor: user not present in trained model")

	// ErrModelNotTrained 表示因子模型尚未训练过。
	ErrModelNotTrained = NewDomainError(ModuleFactor, ErrorCodeUnavailable, "factor: model not trained")

	// ErrIndexNotBuilt 表示该语言的向量索引不存在（语料为空或构建失败）。
	ErrIndexNotBuilt = NewDomainError(ModuleVector, ErrorCodeUnavailable, "vector: language index not built")

	// ErrCatalogUnavailable 是唯一允许向调用方传播的硬错误。
	ErrCatalogUnavailable = NewDomainError(ModuleCatalog, ErrorCodeUnavailable, "catalog: book catalog unavailable")
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}

// IsRecoverable 判断错误是否可以被降级分支就地消化。
// 目录不可用是唯一的不可恢复错误；其余领域错误都有下一层 fallback。
func IsRecoverable(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	if domainErr.Module == ModuleCatalog && domainErr.Code == ErrorCodeUnavailable {
		return false
	}
	return true
}
