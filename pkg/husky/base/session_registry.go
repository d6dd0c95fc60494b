package base

import (
	"sort"
	"sync"
)

// Priority orders thread-final callbacks within a ThreadScope: higher
// priority classes run first so that dependents (e.g. a collection that
// refers to a mailbox) finalize before what they depend on.
type Priority int

const (
	// Low priority thread finalizers run after every High one.
	Low Priority = iota
	// High priority thread finalizers run first.
	High
)

// SessionRegistry bounds process-wide init/finalize hooks and per-thread
// finalize hooks to an explicit session boundary, so the same process can
// host a sequence of independent sessions without leaking state between
// them.
type SessionRegistry struct {
	mutex        sync.Mutex
	sessionEnd   bool
	initializers []func()
	finalizers   []func()
}

// NewSessionRegistry creates a registry with the session considered
// already ended (matching the original's session_end_ = true default),
// so Initialize must be called before the session is considered live.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessionEnd: true}
}

// RegisterInitializer appends a process-wide init callback, run in
// registration order by Initialize.
func (r *SessionRegistry) RegisterInitializer(fn func()) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.initializers = append(r.initializers, fn)
}

// RegisterFinalizer appends a process-wide final callback, run in
// registration order by Finalize.
func (r *SessionRegistry) RegisterFinalizer(fn func()) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.finalizers = append(r.finalizers, fn)
}

// Initialize runs every registered initializer, in registration order, if
// the session had ended; otherwise it is a no-op.
func (r *SessionRegistry) Initialize() {
	r.mutex.Lock()
	if !r.sessionEnd {
		r.mutex.Unlock()
		return
	}
	inits := append([]func(){}, r.initializers...)
	r.sessionEnd = false
	r.mutex.Unlock()

	for _, fn := range inits {
		fn()
	}
}

// Finalize runs every registered finalizer, in registration order, if the
// session had not already ended; otherwise it is a no-op.
func (r *SessionRegistry) Finalize() {
	r.mutex.Lock()
	if r.sessionEnd {
		r.mutex.Unlock()
		return
	}
	finals := append([]func(){}, r.finalizers...)
	r.sessionEnd = true
	r.mutex.Unlock()

	for _, fn := range finals {
		fn()
	}
}

// IsSessionEnd reports whether the session has ended (or not yet begun).
func (r *SessionRegistry) IsSessionEnd() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.sessionEnd
}

// NewThreadScope creates a per-worker-thread scope bound to this
// registry. Go goroutines have no stable thread-local storage, so a
// worker that wants thread-scoped finalizers owns its ThreadScope
// explicitly instead of it being looked up implicitly by the runtime.
func (r *SessionRegistry) NewThreadScope() *ThreadScope {
	return &ThreadScope{registry: r}
}

type priorityFinalizer struct {
	priority Priority
	fn       func()
}

// ThreadScope collects the thread-final callbacks for one worker thread.
type ThreadScope struct {
	registry   *SessionRegistry
	mutex      sync.Mutex
	finalizers []priorityFinalizer
}

// RegisterFinalizer appends a thread-final callback at the given
// priority class.
func (s *ThreadScope) RegisterFinalizer(priority Priority, fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.finalizers = append(s.finalizers, priorityFinalizer{priority: priority, fn: fn})
}

// ThreadFinalize runs this thread's finalizers in priority order, High
// first, preserving registration order within a priority class. It is a
// no-op if the session has already ended.
func (s *ThreadScope) ThreadFinalize() {
	if s.registry.IsSessionEnd() {
		return
	}

	s.mutex.Lock()
	ordered := append([]priorityFinalizer{}, s.finalizers...)
	s.mutex.Unlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority > ordered[j].priority
	})
	for _, f := range ordered {
		f.fn()
	}
}
