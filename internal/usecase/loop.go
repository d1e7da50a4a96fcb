package usecase

import "sync"

// serialLoop runs posted functions one at a time in post order. The
// goroutine that finds the loop idle drains it; posts made while draining
// (including reentrant posts from a running function) are queued and run
// before the drain returns.
type serialLoop struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

func (l *serialLoop) post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true

	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(next)

		l.mu.Lock()
	}
	l.queue = nil
	l.draining = false
	l.mu.Unlock()
}

func (l *serialLoop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.queue = nil
			l.draining = false
			l.mu.Unlock()
			panic(r)
		}
	}()
	fn()
}
