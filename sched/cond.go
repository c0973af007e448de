package sched

import (
	"sync"
	"time"
)

// cond is the reference CondVar: a waiter list of one-shot channels,
// the same wakeup-channel idiom smux/stream.go uses for
// chReaderWakeup/chWriterWakeup, generalized to support both Signal
// (wake one) and Broadcast (wake all) and a timed variant, neither of
// which a bare sync.Cond can express (sync.Cond.Wait cannot be
// interrupted by a timer).
type cond struct {
	owner Mutex

	mu      sync.Mutex
	waiters []chan struct{}
}

func newCond(owner Mutex) *cond {
	return &cond{owner: owner}
}

func (c *cond) register() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

func (c *cond) unregister(ch chan struct{}) {
	c.mu.Lock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Wait releases owner, blocks until woken, then re-acquires owner.
func (c *cond) Wait() {
	ch := c.register()
	c.owner.Unlock()
	<-ch
	c.owner.Lock()
}

func (c *cond) TimedWait(timeoutMS int) bool {
	ch := c.register()
	c.owner.Unlock()

	timer := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer timer.Stop()

	var ok bool
	select {
	case <-ch:
		ok = true
	case <-timer.C:
		c.unregister(ch)
		ok = false
	}

	c.owner.Lock()
	return ok
}

func (c *cond) Signal() {
	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()
		return
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.mu.Unlock()
	close(ch)
}

func (c *cond) Broadcast() {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}
