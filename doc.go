// Package bookrec 是一个混合式图书推荐引擎。
//
// 设计要点：
// - Pipeline-first: 推荐链路通过 Node 串联（Recall → Filter → Rank → ReRank）
// - 快照换入: 模型/特征制品/向量索引整体原子替换，重建失败继续服务旧版本
// - Labels-first: labels 全链路透传与标准化 merge，推荐理由（rationale）由此产出
// - 三级降级: 协同+内容融合 → 内容 → 热门兜底，信号缺席不是错误
//
// 编排入口见 engine 包；配置驱动的链路装配见 config 与 config/builders 包。
package bookrec

import "github.com/rushteam/bookrec/pipeline"

// 轻量 facade：便于用户直接 import "bookrec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindRank   = pipeline.KindRank
	KindReRank = pipeline.KindReRank
)
