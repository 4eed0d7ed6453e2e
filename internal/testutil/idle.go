package testutil

import (
	"sync"
	"time"
)

// ManualQueue is an idle queue whose tasks run only when the test drains
// it. It satisfies prefetch.IdleQueue.
type ManualQueue struct {
	mu    sync.Mutex
	tasks []func(deadline time.Time)
	// Budget is the time each drained task is given. Zero means a
	// deadline far in the future.
	Budget time.Duration
	Now    func() time.Time
}

// PostIdleTask queues task.
func (q *ManualQueue) PostIdleTask(task func(deadline time.Time)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Len returns the number of queued tasks.
func (q *ManualQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Step runs the tasks queued so far, once each, and returns how many ran.
// Tasks posted while stepping wait for the next call.
func (q *ManualQueue) Step() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task(q.deadline())
	}
	return len(tasks)
}

// Drain steps until the queue is empty or limit steps ran, returning the
// number of tasks executed.
func (q *ManualQueue) Drain(limit int) int {
	total := 0
	for i := 0; i < limit; i++ {
		n := q.Step()
		if n == 0 {
			break
		}
		total += n
	}
	return total
}

func (q *ManualQueue) deadline() time.Time {
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}
	if q.Budget <= 0 {
		return now().Add(time.Hour)
	}
	return now().Add(q.Budget)
}

// StepClock is a clock that advances by Step on every read.
type StepClock struct {
	mu   sync.Mutex
	T    time.Time
	Step time.Duration
}

// Now returns the current time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.T
	c.T = c.T.Add(c.Step)
	return t
}
