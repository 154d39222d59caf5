package calc

import (
	"github.com/sirupsen/logrus"
)

// taskOptions collects the optional knobs Rule.Call and Session.CreateTask
// accept, built by functional options (rule.go's WithLabel/WithDefault).
type taskOptions struct {
	label      string
	hasDefault bool
	defaultVal any
}

// TaskOption configures a single CreateTask call.
type TaskOption func(*taskOptions)

// Session is the content-addressed scheduler: it deduplicates tasks by
// hashid, records every task ever created on its tape, and drives a
// graph to completion one ready task at a time.
//
// Only one Session is active at a time in the whole process (the active
// session is a single package-level variable, not per goroutine); Session
// carries no locking of its own, matching the single-threaded,
// cooperative execution model the engine mandates.
type Session struct {
	tasks map[Hash]*Task
	tape  []*Task

	evalRunning bool

	// storage is a free-form bag external interfaces (runner.go) read
	// configuration from, e.g. storage["scheduler"] for an external
	// process/thread scheduler.
	storage map[string]any

	log        logrus.FieldLogger
	funcHasher FuncHasher
}

// NewSession returns an unentered Session ready for Enter.
func NewSession() *Session {
	return &Session{
		tasks:      map[Hash]*Task{},
		storage:    map[string]any{},
		log:        logrus.StandardLogger(),
		funcHasher: DefaultFuncHasher,
	}
}

// SetLogger overrides the session's logger, e.g. with a field-scoped
// entry (logrus.WithField(...)); the teleport-plugins poller configures
// its logger the same way, by field injection rather than a bespoke
// logging interface.
func (s *Session) SetLogger(log logrus.FieldLogger) { s.log = log }

// SetStorage stashes a named value for external interfaces to pick up
// (runner.go's runner contracts read storage["scheduler"]).
func (s *Session) SetStorage(key string, value any) { s.storage[key] = value }

// SetFuncHasher swaps the strategy used to derive a task's function
// identity hash. DefaultFuncHasher is entry-point-based, but a caller
// with access to real source hashing can substitute it here without
// this package knowing the difference.
func (s *Session) SetFuncHasher(h FuncHasher) { s.funcHasher = h }

var activeSession *Session

// Enter makes s the active session for subsequent Rule.Call and package
// level helpers: rule bodies reach CreateTask through the active session
// rather than a Session threaded through every rule signature, so
// Enter/Exit make that one piece of global state explicit and symmetric.
func (s *Session) Enter() { activeSession = s }

// Exit clears the active session if s is still the active one.
func (s *Session) Exit() {
	if activeSession == s {
		activeSession = nil
	}
}

// ActiveSession returns the currently entered session, or
// ErrNoActiveSession if none is active.
func ActiveSession() (*Session, error) {
	if activeSession == nil {
		return nil, ErrNoActiveSession
	}
	return activeSession, nil
}

// CreateTask builds or looks up (by hashid) a Task for fn and args,
// deduplicating against every task already created in this session.
//
// The tape append happens in a defer, unconditionally, whether the task
// is new, a dedup hit, or invalid: the tape is a record of every
// creation attempt this session saw, not just the tasks that survived
// validation. That is not obvious from reading the happy path alone,
// which is why it is called out here.
func (s *Session) CreateTask(fn any, args []any, opts ...TaskOption) (t *Task, err error) {
	var o taskOptions
	for _, opt := range opts {
		opt(&o)
	}
	t, err = newTask(fn, args, s.funcHasher, o.hasDefault, o.defaultVal, o.label)
	if err != nil {
		return nil, err
	}
	recorded := t
	defer func() {
		s.tape = append(s.tape, recorded)
	}()

	if existing, ok := s.tasks[t.Hashid()]; ok {
		t = existing
		recorded = existing
		return existing, nil
	}
	if aerr := s.checkArgsReachable(t); aerr != nil {
		err = aerr
		t = nil
		return nil, aerr
	}
	s.tasks[t.Hashid()] = t
	t.Register()
	s.log.WithField("task", string(t.Hashid())).Debug("task created")
	return t, nil
}

// checkArgsReachable verifies every Task embedded in t's arguments was
// itself created in this session: a Task built against a future minted
// by a different session can never be scheduled here.
func (s *Session) checkArgsReachable(t *Task) error {
	for _, a := range t.args {
		for _, sub := range extractTasks(a) {
			if _, ok := s.tasks[sub.Hashid()]; !ok {
				return wrap(ErrArgNotInSession, "%s", sub.Hashid())
			}
		}
	}
	return nil
}

// extractTasks walks an arbitrary future graph (Task/Template/Indexor,
// nested to any depth) and returns every concrete Task reachable from
// it, done or not. It is the composite-future analogue of the codec's
// walkEncode: where the codec walks plain Go values, this walks the
// future graph itself.
func extractTasks(fut HashedFuture) []*Task {
	seen := map[Hash]bool{}
	var out []*Task
	var walk func(HashedFuture)
	walk = func(f HashedFuture) {
		if f == nil || seen[f.Hashid()] {
			return
		}
		seen[f.Hashid()] = true
		switch v := f.(type) {
		case *Task:
			out = append(out, v)
			for _, a := range v.args {
				walk(a)
			}
			if v.futureResult != nil {
				walk(v.futureResult)
			}
		case *Template:
			for _, child := range v.Futures() {
				walk(child)
			}
		case *Indexor:
			walk(v.Task())
		}
	}
	walk(fut)
	return out
}

// chainFuture implements the HAS_RUN transition: fut is whatever a
// rule's function returned in place of a plain value.
//
// A rule can legitimately return an already-completed sibling task
// (session-lifetime dedup) or a Template that collapsed to DONE
// synchronously at construction (template.go's newTemplate fires its
// ready callback inline when it embeds no pending futures), so an
// already-done fut is special-cased: it resolves the task immediately
// and HAS_RUN is never observed.
func (s *Session) chainFuture(t *Task, fut HashedFuture) {
	if existing, err := t.FutureResult(); err == nil && existing == fut {
		// Already chained to this exact future: re-running chainFuture for
		// the same pair would install a second done-callback and, once it
		// fired, call t.SetResult twice, which panics (future.go's
		// SetResult requires not-done). RunTask never legitimately invokes
		// a HAS_RUN task again (Task.Ready() now reports false for it), so
		// this guard only protects against a caller bypassing that check.
		return
	}
	fut.Register()
	if fut.Done() {
		v, _ := fut.Result()
		s.log.WithField("task", string(t.Hashid())).Debug("task resolved directly from an already-done chained future")
		t.SetResult(v)
		return
	}
	t.SetFutureResult(fut)
	s.log.WithFields(logrus.Fields{"task": string(t.Hashid()), "chained_to": string(fut.Hashid())}).
		Debug("task entered HAS_RUN, chained to future")
	fut.AddDoneCallback(func(f HashedFuture) {
		v, _ := f.Result()
		s.log.WithField("task", string(t.Hashid())).Debug("chained future done, resolving task")
		t.SetResult(v)
	})
}

// RunTask runs t's function against its (already resolved) arguments
// and applies the result, directly or by chaining into HAS_RUN.
//
// With allowUnfinished false (the only path Eval exercises), t must
// already be Ready; otherwise RunTask does not panic but returns
// ErrFutureNotDone, since a caller asking to run an unready
// task without allowUnfinished is a scheduling bug. With allowUnfinished
// true, a not-yet-ready task returns its best-effort default instead of
// running at all — this path exists for speculative/partial evaluation
// outside of Eval's own FIFO loop, which never needs it.
func (s *Session) RunTask(t *Task, allowUnfinished bool) (any, error) {
	if t.Done() {
		return nil, wrap(ErrTaskIsDone, "%s", t.Hashid())
	}
	if !t.Ready() {
		if allowUnfinished {
			def, _ := t.Default()
			return t.ResultOrDefault(def), nil
		}
		return nil, wrap(ErrFutureNotDone, "task %s is not ready", t.Hashid())
	}

	args := make([]any, len(t.args))
	for i, a := range t.args {
		v, err := a.Result()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	s.log.WithField("task", string(t.Hashid())).Debug("task scheduled to run")
	result, err := t.invoke(args)
	if err != nil {
		return nil, err
	}
	if fut, ok := result.(HashedFuture); ok {
		s.chainFuture(t, fut)
		def, _ := t.Default()
		return t.ResultOrDefault(def), nil
	}
	s.log.WithField("task", string(t.Hashid())).Debug("task resolved directly")
	t.SetResult(result)
	return result, nil
}

// taskQueue is Eval's FIFO ready-queue. A task is tracked by hashid only
// while actually sitting in the queue, not forever: a task popped while
// still waiting on its own arguments (HAS_RUN tasks chained to a future
// that hasn't resolved yet) is dropped from seen on pop so a later
// rescan can requeue it once it is genuinely ready.
type taskQueue struct {
	items []*Task
	seen  map[Hash]bool
}

func newTaskQueue() *taskQueue { return &taskQueue{seen: map[Hash]bool{}} }

// push enqueues t if it is not already waiting in the queue, reporting
// whether it actually added it.
func (q *taskQueue) push(t *Task) bool {
	if q.seen[t.Hashid()] {
		return false
	}
	q.seen[t.Hashid()] = true
	q.items = append(q.items, t)
	return true
}

func (q *taskQueue) pop() (*Task, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	delete(q.seen, t.Hashid())
	return t, true
}

// Eval drives obj's future graph to completion: any plain Go value is
// first wrapped in a Template, then every ready task
// reachable from the root runs, in FIFO order, until the root is done.
// Because a running rule can itself call CreateTask (through the active
// session), the tape is re-scanned after every RunTask for newly created
// tasks that are already ready, letting the queue self-populate as the
// graph grows during its own evaluation.
func (s *Session) Eval(obj any) (any, error) {
	if s.evalRunning {
		return nil, wrap(ErrNoActiveSession, "eval is already running on this session")
	}

	var root HashedFuture
	if f, ok := obj.(HashedFuture); ok {
		root = f
	} else {
		tm, err := TemplateFromObject(obj)
		if err != nil {
			return nil, err
		}
		root = tm
	}
	root.Register()

	s.evalRunning = true
	defer func() { s.evalRunning = false }()

	s.log.WithField("root", string(root.Hashid())).Info("eval starting")

	q := newTaskQueue()
	for _, t := range extractTasks(root) {
		if !t.Done() {
			q.push(t)
		}
	}

	tapeWatermark := len(s.tape)
	for {
		t, ok := q.pop()
		if !ok {
			break
		}
		if t.Done() || !t.Ready() {
			continue
		}
		s.log.WithField("task", string(t.Hashid())).Debug("task ready, popped from queue")
		if _, err := s.RunTask(t, false); err != nil {
			return nil, err
		}
		for _, nt := range s.tape[tapeWatermark:] {
			if !nt.Done() {
				if q.push(nt) {
					s.log.WithField("task", string(nt.Hashid())).Debug("child task created, enqueued")
				}
			}
		}
		tapeWatermark = len(s.tape)
		if !root.Done() {
			for _, nt := range extractTasks(root) {
				if !nt.Done() {
					q.push(nt)
				}
			}
		}
	}

	if !root.Done() {
		return nil, wrap(ErrFutureNotDone, "evaluation finished without completing the root future")
	}
	s.log.WithField("root", string(root.Hashid())).Info("eval complete")
	return root.Result()
}
