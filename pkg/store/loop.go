package store

// Loop is the store's single execution context: a lone goroutine draining a
// task channel, so that every facade call and every timer fire runs on the
// same goroutine and none can interleave with another. The store itself
// carries no mutex; serialization comes entirely from routing every call
// through one Loop.
type Loop struct {
	tasks chan func()
}

// NewLoop starts a Loop's draining goroutine and returns it.
func NewLoop() *Loop {
	l := &Loop{tasks: make(chan func(), 256)}
	go l.run()
	return l
}

func (l *Loop) run() {
	for task := range l.tasks {
		task()
	}
}

// Submit enqueues fn to run on the loop goroutine and returns immediately.
// Used for fire-and-forget work, such as a timer handing off a sweep.
func (l *Loop) Submit(fn func()) {
	l.tasks <- fn
}

// Run enqueues fn and blocks until it has finished executing on the loop
// goroutine, returning fn's result. This is how facade callers (the command
// layer) get request/response semantics out of an otherwise async actor.
func Run[T any](l *Loop, fn func() T) T {
	result := make(chan T, 1)
	l.tasks <- func() { result <- fn() }
	return <-result
}

// Stop closes the task channel, letting the loop goroutine exit once it has
// drained any already-queued work. Submitting after Stop panics, matching
// channel-close semantics; callers must not submit concurrently with Stop.
func (l *Loop) Stop() {
	close(l.tasks)
}
