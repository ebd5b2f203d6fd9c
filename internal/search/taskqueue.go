package search

import "sync"

// TaskQueue is an unbounded FIFO of files shared by queue workers. Pop blocks
// until a task is available or the queue is closed and drained.
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []FileTask
	closed bool
}

// NewTaskQueue returns an empty, open queue.
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a task and wakes one waiting worker. Pushing to a closed
// queue is a no-op and reports false.
func (q *TaskQueue) Push(task FileTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return true
}

// Close marks the end of input and wakes every waiting worker. Tasks already
// queued are still handed out.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pop removes the oldest task. It returns ok=false once the queue is closed
// and empty.
func (q *TaskQueue) Pop() (task FileTask, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.tasks) == 0 {
		return FileTask{}, false
	}

	task = q.tasks[0]
	q.tasks[0] = FileTask{}
	q.tasks = q.tasks[1:]
	return task, true
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
