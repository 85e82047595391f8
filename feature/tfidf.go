package feature

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// tfidfVocab 是拟合后的 TF-IDF 词表：term -> 槽位下标与 IDF 值。
type tfidfVocab struct {
	index map[string]int
	idf   []float64
}

func (v *tfidfVocab) size() int { return len(v.idf) }

// fitTFIDF 统计文档频次，按 df 降序截断到 maxVocab，计算平滑 IDF。
// 同频 term 按字典序排序，保证拟合结果确定。
func fitTFIDF(docs []string, maxVocab int) *tfidfVocab {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, t := range tokenize(doc) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxVocab {
		terms = terms[:maxVocab]
	}

	n := float64(len(docs))
	vocab := &tfidfVocab{
		index: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	for i, t := range terms {
		vocab.index[t] = i
		// 平滑 IDF，避免全量命中的 term 得 0 权重
		vocab.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return vocab
}

// encodeInto 将文本的 TF-IDF 权重写入 dst 的前 size() 个槽位。
func (v *tfidfVocab) encodeInto(dst []float64, text string) {
	if v.size() == 0 {
		return
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return
	}
	tf := make(map[int]float64)
	for _, t := range tokens {
		if idx, ok := v.index[t]; ok {
			tf[idx]++
		}
	}
	total := float64(len(tokens))
	for idx, count := range tf {
		dst[idx] = (count / total) * v.idf[idx]
	}
}

// tokenize 小写化、按非字母数字切分、去停用词、去单字符 token。
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// normalizeToken 规整类目/作者 key：小写去空白。
func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// 英文常用停用词。图书语料以书名+简介为主，短语级停用词收益不大，
// 这里保持与常见文本向量化器一致的基础集合。
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"all": {}, "am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {},
	"at": {}, "be": {}, "because": {}, "been": {}, "before": {}, "being": {},
	"below": {}, "between": {}, "both": {}, "but": {}, "by": {}, "can": {},
	"could": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "down": {},
	"during": {}, "each": {}, "few": {}, "for": {}, "from": {}, "further": {},
	"had": {}, "has": {}, "have": {}, "having": {}, "he": {}, "her": {},
	"here": {}, "hers": {}, "herself": {}, "him": {}, "himself": {}, "his": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "itself": {}, "just": {}, "me": {}, "more": {}, "most": {},
	"my": {}, "myself": {}, "no": {}, "nor": {}, "not": {}, "now": {}, "of": {},
	"off": {}, "on": {}, "once": {}, "only": {}, "or": {}, "other": {},
	"our": {}, "ours": {}, "ourselves": {}, "out": {}, "over": {}, "own": {},
	"same": {}, "she": {}, "should": {}, "so": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "theirs": {}, "them": {},
	"themselves": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "to": {}, "too": {}, "under": {},
	"until": {}, "up": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"whom": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
	"yours": {}, "yourself": {}, "yourselves": {},
}
