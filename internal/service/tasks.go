package service

import (
	"sync"

	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

// TaskPool bounds the comparison work that runs after a response has been
// returned. TrySpawn never blocks: when every slot is busy the task is
// dropped, because the safety net must not become back-pressure on the
// requests it watches. Panics inside tasks are captured and logged.
type TaskPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewTaskPool(size int) *TaskPool {
	if size <= 0 {
		size = 256
	}
	return &TaskPool{
		sem: make(chan struct{}, size),
	}
}

// TrySpawn runs fn on its own goroutine if a slot is free and reports
// whether it did.
func (p *TaskPool) TrySpawn(fn func()) bool {
	select {
	case p.sem <- struct{}{}:
	default:
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panicked", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		fn()
	}()
	return true
}

// Wait blocks until all spawned tasks finish, for shutdown.
func (p *TaskPool) Wait() {
	p.wg.Wait()
}
