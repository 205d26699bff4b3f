package service

import (
	"context"
	"sync"
	"time"

	"docchat-go/pkg/log"
)

// Background 运行不影响响应结果的收尾工作（归档、事件发布），每个任务使用独立且有超时的上下文。
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewBackground 创建 Background，timeout <= 0 时使用 30s。
func NewBackground(timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{timeout: timeout}
}

// Go 异步执行 fn。请求上下文中的值会被保留，但其取消不会传递给 fn。
func (b *Background) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warnf("[Background] %s 失败: %v", name, err)
		}
	}()
}

// Wait 等待所有已提交的任务结束。
func (b *Background) Wait() {
	b.wg.Wait()
}
