package viewer

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultIdleBudget is the deadline each queued task gets when the queue
// was built with a zero budget.
const DefaultIdleBudget = 4 * time.Millisecond

// IdleQueue runs prefetch slices on the Bubble Tea update loop, between
// input events. It satisfies prefetch.IdleQueue.
type IdleQueue struct {
	mu     sync.Mutex
	tasks  []func(deadline time.Time)
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
	budget time.Duration
}

// idleMsg wakes the model to run queued tasks.
type idleMsg struct{}

// NewIdleQueue creates a queue giving every task budget.
func NewIdleQueue(budget time.Duration) *IdleQueue {
	if budget <= 0 {
		budget = DefaultIdleBudget
	}
	return &IdleQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		budget: budget,
	}
}

// PostIdleTask queues task for the next idle turn.
func (q *IdleQueue) PostIdleTask(task func(deadline time.Time)) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (q *IdleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops the wait command. Queued tasks are discarded.
func (q *IdleQueue) Close() {
	q.once.Do(func() { close(q.done) })
	q.mu.Lock()
	q.tasks = nil
	q.mu.Unlock()
	select {
	case <-q.notify:
	default:
	}
}

// wait blocks until a task is posted.
func (q *IdleQueue) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-q.notify:
			return idleMsg{}
		case <-q.done:
			return nil
		}
	}
}

// runPending runs the tasks queued so far, each with its own deadline.
// Tasks they post wait for the next turn.
func (q *IdleQueue) runPending() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task(time.Now().Add(q.budget))
	}
	return len(tasks)
}
