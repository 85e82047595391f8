// Package feature 实现图书内容特征管线：
// TF-IDF 文本特征 + 类目/作者/年份编码 + 随机投影降维 + L2 归一化。
//
// 管线分两个阶段：
//   - Fit：对语料快照拟合词表、IDF、类目/作者词表、年份范围与投影矩阵，
//     产出带版本号的不可变 Fitted 状态
//   - Vectorize：对单本书做纯函数式向量化，同一 Fitted 状态下结果比特级一致
package feature

import (
	"github.com/google/uuid"

	"github.com/rushteam/bookrec/core"
)

// Pipeline 的默认超参数。
const (
	DefaultMaxVocab       = 10000 // TF-IDF 词表上限
	DefaultOutputDims     = 256   // 投影后的目标维度
	DefaultGenreWeight    = 2.0   // 类目特征加权
	DefaultAuthorWeight   = 2.0   // 作者特征加权
	DefaultProjectionSeed = 42    // 投影矩阵的确定性种子
)

// Pipeline 是特征管线的配置入口。字段导出，零值走默认值。
type Pipeline struct {
	// MaxVocab TF-IDF 词表上限，超出时按文档频次截断
	MaxVocab int
	// OutputDims 投影输出维度
	OutputDims int
	// GenreWeight 类目 multi-hot 的加权系数
	GenreWeight float64
	// AuthorWeight 作者 one-hot 的加权系数
	AuthorWeight float64
	// ProjectionSeed 投影矩阵种子；固定种子保证重复 Fit 产出一致矩阵
	ProjectionSeed int64
}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) maxVocab() int {
	if p.MaxVocab > 0 {
		return p.MaxVocab
	}
	return DefaultMaxVocab
}

func (p *Pipeline) outputDims() int {
	if p.OutputDims > 0 {
		return p.OutputDims
	}
	return DefaultOutputDims
}

func (p *Pipeline) genreWeight() float64 {
	if p.GenreWeight > 0 {
		return p.GenreWeight
	}
	return DefaultGenreWeight
}

func (p *Pipeline) authorWeight() float64 {
	if p.AuthorWeight > 0 {
		return p.AuthorWeight
	}
	return DefaultAuthorWeight
}

func (p *Pipeline) projectionSeed() int64 {
	if p.ProjectionSeed != 0 {
		return p.ProjectionSeed
	}
	return DefaultProjectionSeed
}

// Fitted 是一次 Fit 的不可变产物。所有 map/slice 在 Fit 后只读，
// 因此 Vectorize 可以被任意 goroutine 并发调用。
type Fitted struct {
	// Version 标识拟合版本，训练/构建流水线据此判断制品是否同源
	Version string

	vocab      *tfidfVocab
	genres     map[string]int
	authors    map[string]int
	yearMin    int
	yearMax    int
	genreW     float64
	authorW    float64
	projection *projection
}

// Fit 对语料快照拟合全部状态。空语料不是错误，产出的 Fitted
// 只包含投影与默认值（Vectorize 仍然可用）。
func (p *Pipeline) Fit(books []*core.Book) (*Fitted, error) {
	docs := make([]string, len(books))
	for i, b := range books {
		docs[i] = b.Title + " " + b.Summary
	}
	vocab := fitTFIDF(docs, p.maxVocab())

	genres := make(map[string]int)
	authors := make(map[string]int)
	yearMin, yearMax := 0, 0
	for _, b := range books {
		for _, g := range b.Genres {
			g = normalizeToken(g)
			if g == "" {
				continue
			}
			if _, ok := genres[g]; !ok {
				genres[g] = len(genres)
			}
		}
		if a := normalizeToken(b.Author); a != "" {
			if _, ok := authors[a]; !ok {
				authors[a] = len(authors)
			}
		}
		if b.Year > 0 {
			if yearMin == 0 || b.Year < yearMin {
				yearMin = b.Year
			}
			if b.Year > yearMax {
				yearMax = b.Year
			}
		}
	}

	// 原始维度 = 词表 + 类目 + 作者（含 unknown 槽位）+ 年份
	inputDims := vocab.size() + len(genres) + len(authors) + 1 + 1
	proj := newProjection(inputDims, p.outputDims(), p.projectionSeed())

	return &Fitted{
		Version:    uuid.NewString(),
		vocab:      vocab,
		genres:     genres,
		authors:    authors,
		yearMin:    yearMin,
		yearMax:    yearMax,
		genreW:     p.genreWeight(),
		authorW:    p.authorWeight(),
		projection: proj,
	}, nil
}

// Dims 返回输出向量维度。
func (f *Fitted) Dims() int { return f.projection.outDims }

// Vectorize 对单本书产出 L2 归一化向量。
// 缺失字段使用中性默认值（年份取区间中点，作者落 unknown 槽位），不会报错。
func (f *Fitted) Vectorize(book *core.Book) (*core.ContentVector, error) {
	if book == nil || book.ID == "" {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: book is nil or has no id")
	}

	raw := make([]float64, f.projection.inDims)

	// 文本 TF-IDF
	f.vocab.encodeInto(raw, book.Title+" "+book.Summary)

	// 类目 multi-hot，加权
	base := f.vocab.size()
	for _, g := range book.Genres {
		if idx, ok := f.genres[normalizeToken(g)]; ok {
			raw[base+idx] = f.genreW
		}
	}

	// 作者 one-hot，未知作者共享 unknown 槽位
	base += len(f.genres)
	if idx, ok := f.authors[normalizeToken(book.Author)]; ok {
		raw[base+idx] = f.authorW
	} else {
		raw[base+len(f.authors)] = f.authorW
	}

	// 年份 min-max 到 [0,1]，缺失取中点
	base += len(f.authors) + 1
	raw[base] = f.scaleYear(book.Year)

	emb := f.projection.apply(raw)
	l2Normalize(emb)

	return &core.ContentVector{
		BookID:    book.ID,
		Language:  book.NormalizedLanguage(),
		Embedding: emb,
	}, nil
}

// VectorizeBatch 批量向量化；单本书失败只跳过该书，不中断整批。
func (f *Fitted) VectorizeBatch(books []*core.Book) ([]*core.ContentVector, error) {
	out := make([]*core.ContentVector, 0, len(books))
	for _, b := range books {
		v, err := f.Vectorize(b)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *Fitted) scaleYear(year int) float64 {
	if f.yearMax <= f.yearMin {
		return 0.5
	}
	if year <= 0 {
		return 0.5 // 缺失年份取中点，不引入排序偏置
	}
	v := float64(year-f.yearMin) / float64(f.yearMax-f.yearMin)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
