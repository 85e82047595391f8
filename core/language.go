package core

import "strings"

// languageAliases 把常见的 ISO 代码/变体收敛到规范语言名。
// 目录元数据、用户声明偏好与请求参数各自的写法由此对齐，
// 语言索引分片与过滤比较都以规范名为 key。
var languageAliases = map[string]string{
	"en": "english", "eng": "english",
	"es": "spanish", "spa": "spanish", "español": "spanish",
	"fr": "french", "fra": "french", "fre": "french",
	"de": "german", "deu": "german", "ger": "german",
	"it": "italian", "ita": "italian",
	"pt": "portuguese", "por": "portuguese",
	"ru": "russian", "rus": "russian",
	"zh": "chinese", "chi": "chinese", "zho": "chinese",
	"ja": "japanese", "jpn": "japanese",
	"ko": "korean", "kor": "korean",
}

// CanonicalLanguage 把语言标识小写规整并按别名表收敛；
// 不认识的写法原样小写返回（目录里出现什么就用什么分片）。
func CanonicalLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if canonical, ok := languageAliases[lang]; ok {
		return canonical
	}
	return lang
}
