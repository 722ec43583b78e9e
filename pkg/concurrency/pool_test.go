package concurrency

import (
	"backtest_accounts/internal/core"
	"sync"
	"sync/atomic"
	"testing"
)

type noopLogger struct{}

func (l *noopLogger) Debug(msg string, fields ...interface{})               {}
func (l *noopLogger) Info(msg string, fields ...interface{})                {}
func (l *noopLogger) Warn(msg string, fields ...interface{})                {}
func (l *noopLogger) Error(msg string, fields ...interface{})               {}
func (l *noopLogger) Fatal(msg string, fields ...interface{})               {}
func (l *noopLogger) WithField(key string, value interface{}) core.ILogger  { return l }
func (l *noopLogger) WithFields(fields map[string]interface{}) core.ILogger { return l }

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(PoolConfig{
		Name:        "BenchmarkPool",
		MaxWorkers:  10,
		MaxCapacity: 1000,
		NonBlocking: false,
	}, &noopLogger{})
	defer pool.Stop()

	b.ResetTimer()
	var counter int64
	for i := 0; i < b.N; i++ {
		_ = pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		})
	}
}

func BenchmarkWorkerPool_SubmitAndWait(b *testing.B) {
	pool := NewWorkerPool(PoolConfig{
		Name:        "BenchmarkPoolWait",
		MaxWorkers:  10,
		MaxCapacity: 1000,
		NonBlocking: false,
	}, &noopLogger{})
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.SubmitAndWait(func() {
			// work
		})
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{
		Name:        "StatsPool",
		MaxWorkers:  2,
		MaxCapacity: 10,
	}, &noopLogger{})

	for i := 0; i < 5; i++ {
		pool.SubmitAndWait(func() {})
	}
	pool.Stop()

	stats := pool.Stats()
	if got := stats["submitted_tasks"].(uint64); got != 5 {
		t.Fatalf("submitted_tasks = %d, want 5", got)
	}
	if got := stats["successful_tasks"].(uint64); got != 5 {
		t.Fatalf("successful_tasks = %d, want 5", got)
	}
}

func TestWorkerPool_NonBlockingRejectsWhenFull(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{
		Name:        "FullPool",
		MaxWorkers:  1,
		MaxCapacity: 1,
		NonBlocking: true,
	}, &noopLogger{})
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	// Occupy the single worker, then fill the single queue slot.
	_ = pool.Submit(func() { <-block })

	rejected := false
	for i := 0; i < 10; i++ {
		if err := pool.Submit(func() { <-block }); err != nil {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Fatal("expected Submit to reject once the pool was full")
	}
}

func BenchmarkGoroutine_Spawn(b *testing.B) {
	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		go func() {
			wg.Done()
		}()
	}
	wg.Wait()
}
