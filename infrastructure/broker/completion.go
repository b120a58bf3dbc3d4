package broker

import "sync"

// Completion tracks the outstanding sends of one announce. It is done once
// every send has been attempted, whether or not the provider accepted it.
// A nil *Completion is already done.
type Completion struct {
	mu      sync.Mutex
	pending int
	done    chan struct{}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// newCompletion starts with one pending unit held by the resolver (the code
// that has not yet learned how many recipients there are). The resolver
// must add the recipients before calling finish for itself.
func newCompletion() *Completion {
	return &Completion{pending: 1, done: make(chan struct{})}
}

// Completed returns a Completion that is already done.
func Completed() *Completion {
	return &Completion{done: closedChan}
}

func (c *Completion) add(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.pending += n
	c.mu.Unlock()
}

func (c *Completion) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == 0 {
		return
	}
	c.pending--
	if c.pending == 0 {
		close(c.done)
	}
}

// Done is closed when no sends remain.
func (c *Completion) Done() <-chan struct{} {
	if c == nil {
		return closedChan
	}
	return c.done
}

// Status reports how many units are still pending.
func (c *Completion) Status() (pending int, done bool) {
	if c == nil {
		return 0, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.pending == 0
}

// OnDone runs fn once, after the completion is done.
func (c *Completion) OnDone(fn func()) {
	go func() {
		<-c.Done()
		fn()
	}()
}

// All aggregates completions into one that is done when all of them are.
// Nil entries count as done.
func All(cs ...*Completion) *Completion {
	agg := newCompletion()
	for _, c := range cs {
		if c == nil {
			continue
		}
		agg.add(1)
		c.OnDone(agg.finish)
	}
	agg.finish()
	return agg
}
