package core

// RecommendContext 携带一次推荐请求的全量上下文：
// 用户、语言偏好、数量与自定义参数。各链路节点只读不写共享字段。
type RecommendContext struct {
	// UserID 用户标识；匿名请求允许为空（走冷启动分支）。
	UserID string
	// Languages 本次请求生效的语言集合（已归一化小写）。
	// 由显式声明或历史推断得出，可为空表示不做语言过滤。
	Languages []string
	// Size 期望返回的条目数；<=0 时由编排方填充默认值。
	Size int
	// Params 额外参数（权重覆盖、实验分桶等），节点按需读取。
	Params map[string]any
}

// Param 读取自定义参数，不存在时返回 def。
func (c *RecommendContext) Param(key string, def any) any {
	if c == nil || c.Params == nil {
		return def
	}
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// WantsLanguage 判断语言 lang 是否命中请求的语言集合。
// 语言集合为空时视为全部命中。
func (c *RecommendContext) WantsLanguage(lang string) bool {
	if c == nil || len(c.Languages) == 0 {
		return true
	}
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
