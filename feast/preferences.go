package feast

import (
	"context"
	"strings"

	"github.com/rushteam/bookrec/core"
)

// 偏好读取的默认特征配置。
const (
	DefaultLanguageFeature = "reader_profile:preferred_languages"
	DefaultEntityKey       = "user_id"
)

// PreferenceStore 把 Feast 在线特征库适配成 core.UserPreferenceStore：
// 读取用户声明的语言偏好特征（逗号分隔字符串或字符串列表），
// 小写规整后返回。特征缺失返回空切片——没有声明不是错误，
// 由编排层退回阅读历史推断。
type PreferenceStore struct {
	Client Client
	// Feature 语言偏好的特征名，零值走默认值
	Feature string
	// EntityKey 实体键名，零值走默认值
	EntityKey string
}

func NewPreferenceStore(client Client) *PreferenceStore {
	return &PreferenceStore{Client: client}
}

func (s *PreferenceStore) feature() string {
	if s.Feature != "" {
		return s.Feature
	}
	return DefaultLanguageFeature
}

func (s *PreferenceStore) entityKey() string {
	if s.EntityKey != "" {
		return s.EntityKey
	}
	return DefaultEntityKey
}

func (s *PreferenceStore) GetUserLanguages(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	resp, err := s.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   []string{s.feature()},
		EntityRows: []map[string]any{{s.entityKey(): userID}},
	})
	if err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "feast: online features unavailable")
	}
	if len(resp.FeatureVectors) == 0 {
		return nil, nil
	}

	return parseLanguages(resp.FeatureVectors[0].Values[s.feature()]), nil
}

// parseLanguages 解析特征值：支持逗号分隔字符串与字符串列表两种存法。
func parseLanguages(v any) []string {
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		for _, e := range val {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, lang := range raw {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}

var _ core.UserPreferenceStore = (*PreferenceStore)(nil)
