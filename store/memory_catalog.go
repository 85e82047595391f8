package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/bookrec/core"
)

// MemoryCatalog 是内存实现的图书目录 + 交互存储 + 语言偏好存储，
// 用于测试/开发/原型。生产环境由外部目录服务与 Feast 在线特征库承担。
type MemoryCatalog struct {
	mu           sync.RWMutex
	books        map[string]*core.Book
	interactions []*core.Interaction
	languages    map[string][]string // user ID -> declared languages
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		books:     make(map[string]*core.Book),
		languages: make(map[string][]string),
	}
}

// PutBook 写入/覆盖一本书。非法图书（Validate 失败）被拒绝。
func (c *MemoryCatalog) PutBook(book *core.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[book.ID] = book
	return nil
}

// AddInteraction 追加一条交互事件。
func (c *MemoryCatalog) AddInteraction(in *core.Interaction) error {
	if err := in.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactions = append(c.interactions, in)
	return nil
}

// SetUserLanguages 写入用户声明的语言偏好。
func (c *MemoryCatalog) SetUserLanguages(userID string, languages []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.languages[userID] = languages
}

func (c *MemoryCatalog) GetBooksByIDs(ctx context.Context, ids []string) (map[string]*core.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*core.Book, len(ids))
	for _, id := range ids {
		if b, ok := c.books[id]; ok {
			result[id] = b
		}
	}
	return result, nil
}

func (c *MemoryCatalog) GetAllBooks(ctx context.Context, language string) ([]*core.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	books := make([]*core.Book, 0, len(c.books))
	for _, b := range c.books {
		if language != "" && b.NormalizedLanguage() != language {
			continue
		}
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (c *MemoryCatalog) GetPopularityRanked(ctx context.Context, language string, limit int) ([]*core.Book, error) {
	books, err := c.GetAllBooks(ctx, language)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].PopularityScore != books[j].PopularityScore {
			return books[i].PopularityScore > books[j].PopularityScore
		}
		return books[i].ID < books[j].ID
	})
	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}
	return books, nil
}

func (c *MemoryCatalog) GetInteractions(ctx context.Context, userID string) ([]*core.Interaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if userID == "" {
		out := make([]*core.Interaction, len(c.interactions))
		copy(out, c.interactions)
		return out, nil
	}
	var out []*core.Interaction
	for _, in := range c.interactions {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) GetInteractionCounts(ctx context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int)
	for _, in := range c.interactions {
		counts[in.UserID]++
	}
	return counts, nil
}

func (c *MemoryCatalog) GetUserLanguages(ctx context.Context, userID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.languages[userID], nil
}

var (
	_ core.Catalog             = (*MemoryCatalog)(nil)
	_ core.InteractionStore    = (*MemoryCatalog)(nil)
	_ core.UserPreferenceStore = (*MemoryCatalog)(nil)
)
