// Package queue provides an unbounded FIFO backed by a pair of channels.
package queue

import (
	"container/list"
)

type Queue[T any] struct {
	in, out chan T
}

func New[T any]() *Queue[T] {
	ret := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go ret.pump()
	return ret
}

func (me *Queue[T]) pump() {
	in := me.in
	l := list.New()
	for {
		if l.Len() == 0 {
			if in == nil {
				break
			}
			v, ok := <-in
			if !ok {
				break
			}
			l.PushBack(v)
			continue
		}
		select {
		case me.out <- l.Front().Value.(T):
			l.Remove(l.Front())
		case v, ok := <-in:
			if !ok {
				in = nil
			} else {
				l.PushBack(v)
			}
		}
	}
	close(me.out)
}

// Put never blocks for long: values are buffered until a Get takes them.
func (me *Queue[T]) Put(v T) {
	me.in <- v
}

// Get blocks until a value is available. ok is false once the queue is
// closed and drained.
func (me *Queue[T]) Get() (val T, ok bool) {
	val, ok = <-me.out
	return
}

func (me *Queue[T]) Close() {
	close(me.in)
}
