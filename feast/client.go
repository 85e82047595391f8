// Package feast 对接 Feast Feature Store 的在线特征库，
// 为推荐引擎提供用户声明的语言偏好。
//
// 参考：https://github.com/feast-dev/feast
package feast

import "context"

// Client 是 Feast 在线特征库的客户端接口。
// 领域层依赖此接口；gRPC 实现见 grpc_client.go。
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时请求路径）
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求。
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["reader_profile:preferred_languages"]
	Features []string

	// EntityRows 实体行，例如 [{"user_id": "u1001"}]
	EntityRows []map[string]any

	// Project 项目名称（可选，缺省用客户端配置）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应。
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector
}

// FeatureVector 单个实体的特征值集合。
type FeatureVector struct {
	// Values key 为特征名称
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}
