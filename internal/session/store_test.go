package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/model"
	"docchat-go/internal/vectorindex"
)

type countingIndex struct {
	vectorindex.Index
	name     string
	released atomic.Int32
}

func (c *countingIndex) Release(context.Context) error {
	c.released.Add(1)
	return nil
}

func newIndex(name string) *countingIndex { return &countingIndex{name: name} }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(ttl time.Duration, max int) (*MemoryStore, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(ttl, max)
	s.now = c.now
	return s, c
}

func TestMemoryStore_PutGetReplace(t *testing.T) {
	s, _ := newStore(time.Hour, 10)
	ctx := context.Background()

	_, ok := s.Get("a")
	assert.False(t, ok)

	first := newIndex("first")
	assert.Nil(t, s.Put(ctx, &Entry{SessionID: "a", Index: first}))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, first, got.Index)

	second := newIndex("second")
	prev := s.Put(ctx, &Entry{SessionID: "a", Index: second})
	require.NotNil(t, prev)
	assert.Same(t, first, prev.Index)
	assert.EqualValues(t, 1, first.released.Load())
	assert.EqualValues(t, 0, second.released.Load())

	got, _ = s.Get("a")
	assert.Same(t, second, got.Index)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	s, _ := newStore(time.Hour, 10)
	a, b := newIndex("a"), newIndex("b")
	s.Put(context.Background(), &Entry{SessionID: "a", Index: a})
	s.Put(context.Background(), &Entry{SessionID: "b", Index: b})

	ga, _ := s.Get("a")
	gb, _ := s.Get("b")
	assert.Same(t, a, ga.Index)
	assert.Same(t, b, gb.Index)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	s, c := newStore(2*time.Hour, 10)
	idx := newIndex("x")
	s.Put(context.Background(), &Entry{SessionID: "a", Index: idx})

	c.advance(90 * time.Minute)
	_, ok := s.Get("a") // 访问刷新空闲计时
	require.True(t, ok)

	c.advance(90 * time.Minute)
	assert.Equal(t, 0, s.Sweep(c.now()))

	c.advance(3 * time.Hour)
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.EqualValues(t, 1, idx.released.Load())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Sweep(t *testing.T) {
	s, c := newStore(time.Hour, 10)
	old, fresh := newIndex("old"), newIndex("fresh")
	s.Put(context.Background(), &Entry{SessionID: "old", Index: old})
	c.advance(50 * time.Minute)
	s.Put(context.Background(), &Entry{SessionID: "fresh", Index: fresh})
	c.advance(20 * time.Minute)

	assert.Equal(t, 1, s.Sweep(c.now()))
	assert.EqualValues(t, 1, old.released.Load())
	assert.EqualValues(t, 0, fresh.released.Load())
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	s, _ := newStore(time.Hour, 2)
	a, b, c := newIndex("a"), newIndex("b"), newIndex("c")
	ctx := context.Background()
	s.Put(ctx, &Entry{SessionID: "a", Index: a})
	s.Put(ctx, &Entry{SessionID: "b", Index: b})
	s.Get("a") // b 成为最久未使用
	s.Put(ctx, &Entry{SessionID: "c", Index: c})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	assert.False(t, ok)
	assert.EqualValues(t, 1, b.released.Load())
	_, ok = s.Get("a")
	assert.True(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	s, _ := newStore(time.Hour, 2)
	idx := newIndex("a")
	s.Put(context.Background(), &Entry{SessionID: "a", Index: idx})
	s.Delete(context.Background(), "a")
	s.Delete(context.Background(), "missing")

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.EqualValues(t, 1, idx.released.Load())
}

func TestMemoryStore_ConcurrentReadersSeeWholeEntries(t *testing.T) {
	s := NewMemoryStore(time.Hour, 100)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := fmt.Sprintf("w%d-%d", w, i)
				s.Put(ctx, &Entry{SessionID: "shared", Index: newIndex(name), Document: docInfo(name)})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if e, ok := s.Get("shared"); ok {
					assert.Equal(t, e.Index.(*countingIndex).name, e.Document.FileName)
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryStore_RunStopsWithContext(t *testing.T) {
	s := NewMemoryStore(time.Millisecond, 10)
	s.Put(context.Background(), &Entry{SessionID: "a", Index: newIndex("a")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 2*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func docInfo(name string) model.DocumentInfo {
	return model.DocumentInfo{FileName: name}
}
