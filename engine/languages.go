package engine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rushteam/bookrec/cache"
	"github.com/rushteam/bookrec/core"
)

// 语言偏好解析默认参数。
const (
	DefaultMaxLanguages     = 3
	DefaultMinLanguageCount = 2
	// FallbackLanguage 在声明与推断都为空时兜底
	FallbackLanguage = "english"
)

// CanonicalLanguage 见 core.CanonicalLanguage，此处转发以方便调用方。
func CanonicalLanguage(lang string) string {
	return core.CanonicalLanguage(lang)
}

func (e *Engine) maxLanguages() int {
	if e.opts.MaxLanguages > 0 {
		return e.opts.MaxLanguages
	}
	return DefaultMaxLanguages
}

func (e *Engine) minLanguageCount() int {
	if e.opts.MinLanguageCount > 0 {
		return e.opts.MinLanguageCount
	}
	return DefaultMinLanguageCount
}

// resolveLanguages 解析本次请求的语言范围：
//  1. 调用方显式传入的 languages 优先
//  2. 声明偏好（Preferences，如在线特征库）
//  3. 阅读历史推断（like 过的书按语言计数）
//  4. 都为空时回退 FallbackLanguage
//
// 匿名用户不限定语言（返回空表示全部）。
func (e *Engine) resolveLanguages(ctx context.Context, userID string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return canonicalSet(explicit, e.maxLanguages()), nil
	}
	if userID == "" {
		return nil, nil
	}

	if e.cache == nil {
		return e.detectLanguages(ctx, userID)
	}
	key := cache.Key("languages", userID, nil)
	payload, err := e.cache.GetOrComputeUser(ctx, userID, key, cache.ClassPreferences, func(ctx context.Context) ([]byte, error) {
		langs, err := e.detectLanguages(ctx, userID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(langs)
	})
	if err != nil {
		return nil, err
	}
	var langs []string
	if err := json.Unmarshal(payload, &langs); err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeInternalError, "engine: corrupt cached languages")
	}
	return langs, nil
}

func (e *Engine) detectLanguages(ctx context.Context, userID string) ([]string, error) {
	if e.prefs != nil {
		declared, err := e.prefs.GetUserLanguages(ctx, userID)
		// 偏好存储不可用是可恢复的：落到历史推断
		if err != nil && !core.IsRecoverable(err) {
			return nil, err
		}
		if len(declared) > 0 {
			return canonicalSet(declared, e.maxLanguages()), nil
		}
	}

	inferred, err := e.inferFromHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(inferred) == 0 {
		return []string{FallbackLanguage}, nil
	}
	return inferred, nil
}

// inferFromHistory 统计用户 like 过的书的语言分布，
// 次数达到阈值的语言按次数降序（同次数按语言名）取前若干个。
// 没有语言过阈值时退回占比最高的 like 语言：阈值是为了
// 在长历史里滤噪，不能把仅有的内容种子挡在语言域之外。
func (e *Engine) inferFromHistory(ctx context.Context, userID string) ([]string, error) {
	history, err := e.interactions.GetInteractions(ctx, userID)
	if err != nil {
		return nil, nil
	}
	var likedIDs []string
	for _, it := range history {
		if it.Action == core.ActionLike {
			likedIDs = append(likedIDs, it.BookID)
		}
	}
	if len(likedIDs) == 0 {
		return nil, nil
	}

	books, err := e.catalog.GetBooksByIDs(ctx, likedIDs)
	if err != nil {
		return nil, core.ErrCatalogUnavailable
	}
	counts := make(map[string]int)
	for _, id := range likedIDs {
		b, ok := books[id]
		if !ok {
			continue
		}
		if lang := CanonicalLanguage(b.Language); lang != "" {
			counts[lang]++
		}
	}

	minCount := e.minLanguageCount()
	langs := make([]string, 0, len(counts))
	for lang, n := range counts {
		if n >= minCount {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		for lang := range counts {
			langs = append(langs, lang)
		}
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	if max := e.maxLanguages(); len(langs) > max {
		langs = langs[:max]
	}
	return langs, nil
}

// canonicalSet 规整、去重并截断语言列表，保持输入顺序。
func canonicalSet(langs []string, max int) []string {
	seen := make(map[string]struct{}, len(langs))
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		canonical := CanonicalLanguage(lang)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
		if len(out) >= max {
			break
		}
	}
	return out
}
