package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/bookrec/core"
)

func TestMemoryStore_SetGetTTL(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if err := ms.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := ms.Get(ctx, "k1")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get = %q, %v; want v1, nil", got, err)
	}

	// 过期 key 读取应返回 not found
	if err := ms.Set(ctx, "k2", []byte("v2"), 1); err != nil {
		t.Fatalf("Set with ttl: %v", err)
	}
	ms.mu.Lock()
	past := time.Now().Add(-time.Second)
	ms.data["k2"].ttl = &past
	ms.mu.Unlock()
	if _, err := ms.Get(ctx, "k2"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get expired key: err = %v, want store not found", err)
	}

	if _, err := ms.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get missing key: err = %v, want store not found", err)
	}
}

func TestMemoryStore_BatchGetSkipsMissing(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	_ = ms.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	got, err := ms.BatchGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Fatalf("BatchGet = %v, want a=1 b=2", got)
	}
}

func TestMemoryStore_ZRangeDescending(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	_ = ms.ZAdd(ctx, "popular", 1.0, "low")
	_ = ms.ZAdd(ctx, "popular", 9.0, "high")
	_ = ms.ZAdd(ctx, "popular", 5.0, "mid")

	got, err := ms.ZRange(ctx, "popular", 0, -1)
	if err != nil {
		t.Fatalf("ZRange: %v", err)
	}
	want := []string{"high", "mid", "low"}
	if len(got) != len(want) {
		t.Fatalf("ZRange = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ZRange = %v, want %v", got, want)
		}
	}

	top, err := ms.ZRange(ctx, "popular", 0, 1)
	if err != nil || len(top) != 2 || top[0] != "high" || top[1] != "mid" {
		t.Fatalf("ZRange top2 = %v, %v", top, err)
	}
}

func TestMemoryStore_Sets(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	_ = ms.SAdd(ctx, "user:u1:keys", "k1", "k2")
	_ = ms.SAdd(ctx, "user:u1:keys", "k2", "k3")

	got, err := ms.SMembers(ctx, "user:u1:keys")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("SMembers = %v, want 3 distinct members", got)
	}

	if err := ms.Delete(ctx, "user:u1:keys"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = ms.SMembers(ctx, "user:u1:keys")
	if len(got) != 0 {
		t.Fatalf("SMembers after delete = %v, want empty", got)
	}
}

func TestMemoryCatalog_PopularityRanked(t *testing.T) {
	c := NewMemoryCatalog()
	ctx := context.Background()

	books := []*core.Book{
		{ID: "b1", Title: "One", Author: "A", Language: "English", PopularityScore: 0.2},
		{ID: "b2", Title: "Two", Author: "B", Language: "english", PopularityScore: 0.9},
		{ID: "b3", Title: "Tres", Author: "C", Language: "spanish", PopularityScore: 0.5},
	}
	for _, b := range books {
		if err := c.PutBook(b); err != nil {
			t.Fatalf("PutBook(%s): %v", b.ID, err)
		}
	}

	got, err := c.GetPopularityRanked(ctx, "", 2)
	if err != nil {
		t.Fatalf("GetPopularityRanked: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b2" || got[1].ID != "b3" {
		t.Fatalf("GetPopularityRanked = %v, want [b2 b3]", ids(got))
	}

	// 语言过滤大小写不敏感
	en, err := c.GetPopularityRanked(ctx, "english", 10)
	if err != nil {
		t.Fatalf("GetPopularityRanked(english): %v", err)
	}
	if len(en) != 2 || en[0].ID != "b2" || en[1].ID != "b1" {
		t.Fatalf("GetPopularityRanked(english) = %v, want [b2 b1]", ids(en))
	}
}

func TestMemoryCatalog_Interactions(t *testing.T) {
	c := NewMemoryCatalog()
	ctx := context.Background()
	now := time.Now()

	ins := []*core.Interaction{
		{UserID: "u1", BookID: "b1", Action: core.ActionLike, Timestamp: now},
		{UserID: "u1", BookID: "b2", Action: core.ActionSearch, Timestamp: now},
		{UserID: "u2", BookID: "b1", Action: core.ActionDislike, Timestamp: now},
	}
	for _, in := range ins {
		if err := c.AddInteraction(in); err != nil {
			t.Fatalf("AddInteraction: %v", err)
		}
	}

	u1, err := c.GetInteractions(ctx, "u1")
	if err != nil || len(u1) != 2 {
		t.Fatalf("GetInteractions(u1) = %d events, %v; want 2", len(u1), err)
	}
	all, err := c.GetInteractions(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("GetInteractions(all) = %d events, %v; want 3", len(all), err)
	}

	counts, err := c.GetInteractionCounts(ctx)
	if err != nil || counts["u1"] != 2 || counts["u2"] != 1 {
		t.Fatalf("GetInteractionCounts = %v, %v", counts, err)
	}
}

func ids(books []*core.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}
