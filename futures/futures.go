package futures

import (
	"sync"

	"github.com/anacrolix/frameprobe/queue"
)

type runner interface {
	run()
}

// Maintains the pool of workers and receives new work.
type Executor struct {
	waiting *queue.Queue[runner]
}

// Create a new Executor that does up to maxWorkers tasks in parallel. Fewer
// than one worker is treated as one.
func NewExecutor(maxWorkers int) *Executor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ret := &Executor{
		waiting: queue.New[runner](),
	}
	for a := 0; a < maxWorkers; a++ {
		go func() {
			for {
				r, ok := ret.waiting.Get()
				if !ok {
					return
				}
				r.run()
			}
		}()
	}
	return ret
}

// Prevents new tasks being submitted, and cleans up workers when all futures
// have been processed.
func (me *Executor) Shutdown() {
	me.waiting.Close()
}

// Submit the function to the Executor, returning a Future that represents it.
func Submit[T any](e *Executor, fn func() T) *Future[T] {
	fut := &Future[T]{
		fn:   fn,
		done: make(chan struct{}),
	}
	e.waiting.Put(fut)
	return fut
}

// Represents some asynchronous execution.
type Future[T any] struct {
	fn     func() T
	done   chan struct{}
	result T
	do     sync.Once
}

// Blocks until the Future completes, and returns the computed value.
func (me *Future[T]) Result() T {
	<-me.done
	return me.result
}

func (me *Future[T]) run() {
	me.do.Do(func() {
		me.result = me.fn()
		close(me.done)
	})
}

// Calls fn with each item received from inputs, and outputs the results in the
// same order to the returned channel.
func Map[In, Out any](e *Executor, fn func(In) Out, inputs <-chan In) <-chan Out {
	ret := make(chan Out)
	go func() {
		futs := queue.New[*Future[Out]]()
		go func() {
			for {
				fut, ok := futs.Get()
				if !ok {
					break
				}
				ret <- fut.Result()
			}
			close(ret)
		}()
		for a := range inputs {
			a := a
			futs.Put(Submit(e, func() Out {
				return fn(a)
			}))
		}
		futs.Close()
	}()
	return ret
}
