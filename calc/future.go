package calc

// HashedFuture is the closed interface every future variant (Task,
// Template, Indexor) implements: a future plus a content-derived hashid
// and a canonical spec string identifying it.
//
// There is no exported bare "Future" type: every future the engine ever
// constructs is one of the three hashed variants, so the common base
// lives only as futureCore below, unexported and embedded by value in
// each variant.
type HashedFuture interface {
	Hashid() Hash
	Spec() string

	Register() bool
	Ready() bool
	Done() bool
	State() State
	Pending() []HashedFuture

	AddChild(child HashedFuture)
	ParentDone(parentHashid Hash)
	AddReadyCallback(cb func(HashedFuture))
	AddDoneCallback(cb func(HashedFuture))

	SetResult(v any)
	Result() (any, error)
	ResultOrDefault(def any) any
}

// futureCore is the future kernel shared by every variant: dependency
// tracking, readiness/doneness, and ordered one-shot callback dispatch.
//
// The engine is single-threaded and cooperative: only one eval runs at
// a time, and concurrent session use is undefined, so futureCore
// carries no mutex and runs nothing on a goroutine; it keeps only the
// ready/done callback-list idiom (append if not satisfied yet, else
// invoke immediately).
type futureCore struct {
	self HashedFuture

	pending  []HashedFuture
	children []HashedFuture

	hasResult bool
	result    any

	readyCallbacks []func(HashedFuture)
	doneCallbacks  []func(HashedFuture)

	registered bool
}

// init wires the core to its owning variant and its parent futures.
// Parents already done are never tracked as pending: once done, a
// parent can never un-complete, so there is nothing left to wait for.
func (fc *futureCore) init(self HashedFuture, parents []HashedFuture) {
	fc.self = self
	for _, p := range parents {
		if !p.Done() {
			fc.pending = append(fc.pending, p)
		}
	}
}

func (fc *futureCore) Pending() []HashedFuture {
	out := make([]HashedFuture, len(fc.pending))
	copy(out, fc.pending)
	return out
}

func (fc *futureCore) Ready() bool { return len(fc.pending) == 0 }
func (fc *futureCore) Done() bool  { return fc.hasResult }

// baseState implements the UNREGISTERED/PENDING/READY/DONE progression;
// Task overlays HAS_RUN on top of READY (see task.go).
func (fc *futureCore) baseState() State {
	switch {
	case fc.Done():
		return StateDone
	case fc.Ready():
		return StateReady
	case fc.registered:
		return StatePending
	default:
		return StateUnregistered
	}
}

// register is the idempotent wiring step: on first call it inserts self
// into every still-pending parent's children and returns true.
func (fc *futureCore) register() bool {
	if fc.registered {
		return false
	}
	fc.registered = true
	for _, p := range fc.pending {
		p.AddChild(fc.self)
	}
	return true
}

func (fc *futureCore) AddChild(child HashedFuture) {
	fc.children = append(fc.children, child)
}

func (fc *futureCore) AddReadyCallback(cb func(HashedFuture)) {
	if fc.Ready() {
		cb(fc.self)
		return
	}
	fc.readyCallbacks = append(fc.readyCallbacks, cb)
}

func (fc *futureCore) AddDoneCallback(cb func(HashedFuture)) {
	if fc.Done() {
		panic("calc: add_done_callback on an already-done future: " + string(fc.self.Hashid()))
	}
	fc.doneCallbacks = append(fc.doneCallbacks, cb)
}

// ParentDone is invoked by a parent upon its own SetResult. Once no
// parent remains pending, queued ready callbacks fire, in insertion
// order, each exactly once.
func (fc *futureCore) ParentDone(parentHashid Hash) {
	for i, p := range fc.pending {
		if p.Hashid() == parentHashid {
			fc.pending = append(fc.pending[:i:i], fc.pending[i+1:]...)
			break
		}
	}
	if !fc.Ready() {
		return
	}
	cbs := fc.readyCallbacks
	fc.readyCallbacks = nil
	for _, cb := range cbs {
		cb(fc.self)
	}
}

func (fc *futureCore) SetResult(v any) {
	if !fc.Ready() || fc.hasResult {
		panic("calc: set_result requires a ready, not-done future: " + string(fc.self.Hashid()))
	}
	fc.result = v
	fc.hasResult = true
	for _, child := range fc.children {
		child.ParentDone(fc.self.Hashid())
	}
	cbs := fc.doneCallbacks
	fc.doneCallbacks = nil
	for _, cb := range cbs {
		cb(fc.self)
	}
}

func (fc *futureCore) Result() (any, error) {
	if fc.hasResult {
		return fc.result, nil
	}
	return nil, wrap(ErrFutureNotDone, "%s", fc.self.Hashid())
}

// ResultOrDefault implements the result(default?) contract generically:
// defaultFn is the variant's own default-result computation.
func (fc *futureCore) ResultOrDefault(def any, defaultFn func(any) any) any {
	if fc.hasResult {
		return fc.result
	}
	return defaultFn(def)
}
