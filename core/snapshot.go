package core

import "sync/atomic"

// Snapshot 持有某类不可变制品（模型、索引、特征版本）的当前快照。
// Swap 整体替换，Load 无锁读取；读方拿到的引用在替换后仍然有效，
// 保证训练/重建期间在途请求不被打断。
type Snapshot[T any] struct {
	ptr atomic.Pointer[T]
}

// Load 返回当前快照，未发布过任何版本时返回 nil。
func (s *Snapshot[T]) Load() *T {
	return s.ptr.Load()
}

// Swap 发布新快照并返回被替换的旧版本（可能为 nil）。
func (s *Snapshot[T]) Swap(v *T) *T {
	return s.ptr.Swap(v)
}
