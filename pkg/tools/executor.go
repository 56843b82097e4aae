package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Executor is a bounded worker pool over a Registry: submissions are FIFO
// (semaphore.Weighted queues acquirers in arrival order), each call
// enforces a per-call timeout, and panics are captured as error results
// rather than crashing the pipeline. Grounded on
// AltairaLabs-PromptKit/runtime's concurrency sizing pattern, using
// golang.org/x/sync/semaphore instead of a hand-rolled channel-of-tokens
// pool (spec §4.8).
type Executor struct {
	registry *Registry
	sem      *semaphore.Weighted
	timeout  time.Duration

	mu     sync.Mutex
	active int // submitted calls not yet finished, queued or running
}

// NewExecutor creates an executor bounded to maxConcurrent simultaneous
// tool calls, each given timeout before it is treated as failed.
func NewExecutor(registry *Registry, maxConcurrent int, timeout time.Duration) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Executor{
		registry: registry,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:  timeout,
	}
}

// Completion is delivered to the caller's sink when an asynchronous call
// finishes.
type Completion struct {
	Name   string
	Result Result
}

// Submit runs name(argsJSON) on the pool and returns immediately after the
// call has been dispatched (not completed); it always runs asynchronously.
// If sink is non-nil it is called with the Completion once done; with a nil
// sink the Result is discarded. ExecuteSync is the blocking variant.
func (e *Executor) Submit(ctx context.Context, name, argsJSON string, sink func(Completion)) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()

	go func() {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.mu.Lock()
			e.active--
			e.mu.Unlock()
			if sink != nil {
				sink(Completion{Name: name, Result: Result{Success: false, Error: "queue closed: " + err.Error()}})
			}
			return
		}

		result := e.run(ctx, name, argsJSON)

		e.mu.Lock()
		e.active--
		e.mu.Unlock()
		e.sem.Release(1)

		if sink != nil {
			sink(Completion{Name: name, Result: result})
		}
	}()
}

// ExecuteSync wraps the async path with a completion latch, per spec
// §4.8's "a synchronous variant wraps the async path with a completion
// latch."
func (e *Executor) ExecuteSync(ctx context.Context, name, argsJSON string) Result {
	done := make(chan Result, 1)
	e.Submit(ctx, name, argsJSON, func(c Completion) {
		done <- c.Result
	})
	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return Result{Success: false, Error: "context cancelled"}
	}
}

func (e *Executor) run(ctx context.Context, name, argsJSON string) (result Result) {
	handle, ok := e.registry.Get(name)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{Success: false, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	callCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Result{Success: false, Error: fmt.Sprintf("panic: %v", r)}
				return
			}
		}()
		resultCh <- handle.Execute(argsJSON)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-callCtx.Done():
		return Result{Success: false, Error: "timeout"}
	}
}

// IsIdle reports true iff no submitted call is waiting for a worker or
// running.
func (e *Executor) IsIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active == 0
}

// WaitForCompletion blocks until the executor is idle or timeout elapses,
// returning whether it became idle in time.
func (e *Executor) WaitForCompletion(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.IsIdle() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return e.IsIdle()
}
