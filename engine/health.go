package engine

import (
	"github.com/rushteam/bookrec/cache"
)

// Health 是引擎当前状态的快照，供运维探活/监控采集。
type Health struct {
	// ModelTrained 因子模型是否已有可服务的快照
	ModelTrained bool `json:"model_trained"`
	// ModelUsers / ModelItems 当前模型覆盖的用户数与图书数
	ModelUsers int `json:"model_users"`
	ModelItems int `json:"model_items"`
	// FeatureVersion 当前特征管线制品版本；未拟合时为空
	FeatureVersion string `json:"feature_version,omitempty"`
	// ResidentLanguages 常驻的语言索引
	ResidentLanguages []string `json:"resident_languages"`
	// Store 缓存/曝光记录的后端名；未配置时为空
	Store string `json:"store,omitempty"`
	// Cache 结果缓存的累计计数；未配置缓存时为零值
	Cache cache.Stats `json:"cache"`
	// LastTrain 最近一次成功训练的摘要；从未训练时为 nil
	LastTrain *TrainResult `json:"last_train,omitempty"`
}

// Health 汇总当前快照状态，只读不加锁（各快照自身是原子的）。
func (e *Engine) Health() *Health {
	h := &Health{
		ResidentLanguages: e.vectors.Languages(),
	}
	if model := e.model.Load(); model != nil {
		h.ModelTrained = true
		h.ModelUsers = model.UserCount()
		h.ModelItems = model.ItemCount()
	}
	if fitted := e.fitted.Load(); fitted != nil {
		h.FeatureVersion = fitted.Version
	}
	if e.store != nil {
		h.Store = e.store.Name()
	}
	if e.cache != nil {
		h.Cache = e.cache.Stats()
	}
	h.LastTrain = e.lastRun.Load()
	return h
}
