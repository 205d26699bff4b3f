// Package session 保存每个会话当前生效的向量索引。
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"docchat-go/internal/model"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/log"
)

// Entry 是会话状态的不可变快照。替换时整体换成新的 Entry，读者看到的要么是旧索引要么是新索引。
type Entry struct {
	SessionID string
	Index     vectorindex.Index
	Document  model.DocumentInfo
	IndexedAt time.Time
}

// Store 定义了会话存储的接口。
type Store interface {
	Get(sessionID string) (*Entry, bool)
	// Put 提交新的会话状态，并释放被替换掉的旧索引。
	Put(ctx context.Context, entry *Entry) (previous *Entry)
	Delete(ctx context.Context, sessionID string)
}

type item struct {
	entry      *Entry
	lastAccess time.Time
}

// MemoryStore 是带空闲过期与容量上限（LRU 淘汰）的进程内会话存储。
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // 队首为最近使用
	idleTTL time.Duration
	max     int
	now     func() time.Time
}

// NewMemoryStore 创建会话存储。idleTTL <= 0 表示不过期，maxSessions <= 0 表示不限容量。
func NewMemoryStore(idleTTL time.Duration, maxSessions int) *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		idleTTL: idleTTL,
		max:     maxSessions,
		now:     time.Now,
	}
}

func (s *MemoryStore) expired(it *item, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(it.lastAccess) > s.idleTTL
}

// Get 返回会话当前的快照，并刷新其最近访问时间。已过期的会话视为不存在。
func (s *MemoryStore) Get(sessionID string) (*Entry, bool) {
	s.mu.Lock()
	el, ok := s.items[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	it := el.Value.(*item)
	now := s.now()
	if s.expired(it, now) {
		s.removeLocked(el)
		s.mu.Unlock()
		release(it.entry, "expired")
		return nil, false
	}
	it.lastAccess = now
	s.lru.MoveToFront(el)
	entry := it.entry
	s.mu.Unlock()
	return entry, true
}

// Put 原子地替换会话状态。超出容量时淘汰最久未使用的会话。
func (s *MemoryStore) Put(ctx context.Context, entry *Entry) *Entry {
	var previous *Entry
	var evicted []*Entry

	s.mu.Lock()
	now := s.now()
	if el, ok := s.items[entry.SessionID]; ok {
		it := el.Value.(*item)
		previous = it.entry
		it.entry = entry
		it.lastAccess = now
		s.lru.MoveToFront(el)
	} else {
		s.items[entry.SessionID] = s.lru.PushFront(&item{entry: entry, lastAccess: now})
		for s.max > 0 && s.lru.Len() > s.max {
			oldest := s.lru.Back()
			evicted = append(evicted, oldest.Value.(*item).entry)
			s.removeLocked(oldest)
		}
	}
	s.mu.Unlock()

	if previous != nil && previous.Index != entry.Index {
		releaseCtx(ctx, previous, "replaced")
	}
	for _, e := range evicted {
		releaseCtx(ctx, e, "evicted")
	}
	return previous
}

// Delete 删除会话并释放其索引。
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) {
	s.mu.Lock()
	el, ok := s.items[sessionID]
	var entry *Entry
	if ok {
		entry = el.Value.(*item).entry
		s.removeLocked(el)
	}
	s.mu.Unlock()
	if entry != nil {
		releaseCtx(ctx, entry, "deleted")
	}
}

// Sweep 清理在 now 时刻已经空闲超时的会话，返回清理数量。
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	var expired []*Entry
	s.mu.Lock()
	// 从最久未使用的一端开始，遇到未过期的即可停止
	for el := s.lru.Back(); el != nil; {
		it := el.Value.(*item)
		if !s.expired(it, now) {
			break
		}
		prev := el.Prev()
		expired = append(expired, it.entry)
		s.removeLocked(el)
		el = prev
	}
	s.mu.Unlock()

	for _, e := range expired {
		release(e, "expired")
	}
	return len(expired)
}

// Run 按 interval 周期清理过期会话，直到 ctx 结束。
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				log.Infof("[Session] 清理了 %d 个空闲会话, 剩余 %d 个", n, s.Len())
			}
		}
	}
}

// Len 返回当前会话数（包括尚未被清理的过期会话）。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	it := s.lru.Remove(el).(*item)
	delete(s.items, it.entry.SessionID)
}

func release(e *Entry, reason string) {
	releaseCtx(context.Background(), e, reason)
}

func releaseCtx(ctx context.Context, e *Entry, reason string) {
	if e == nil || e.Index == nil {
		return
	}
	// 请求被取消也要完成释放
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.Index.Release(ctx); err != nil {
		log.Warnf("[Session] 释放会话 %s 的索引失败 (%s): %v", e.SessionID, reason, err)
	}
}

var _ Store = (*MemoryStore)(nil)
