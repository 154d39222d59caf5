package calc

import "reflect"

// Task is a content-addressed unit of computation (spec.md §3, §4.3): a
// function plus its (already-hashed) arguments. Its hashid is derived
// purely from the function's identity and its arguments' hashids, so two
// Tasks built from equal inputs are the same Task everywhere in a
// session (spec.md §4.6's deduplication).
type Task struct {
	core futureCore

	fn     any
	fnName string
	fnHash Hash
	args   []HashedFuture

	specStr string
	hashid  Hash

	hasDefault bool
	defaultVal any
	label      string

	// futureResult is set when this task's own function returns a future
	// instead of a plain value: the task sits in HAS_RUN until that
	// future is done, then adopts its result (spec.md §4.3's chaining).
	futureResult HashedFuture
}

// newTask builds a Task from a function and its (not yet future-wrapped)
// argument objects. Arguments that are not already a HashedFuture are
// promoted via TemplateFromObject, matching spec.md §4.1's "any argument
// that is not itself a future is wrapped in a Template".
//
// funcHasher computes the function's contribution to the task's hashid
// (spec.md §6's externalised HashFunction contract): the spec string is
// the canonical JSON of [funcHasher digest, arg hashids...], so swapping
// the hasher changes both Spec() and the hashid. fullName(fn) is kept
// separately as the human-readable name FuncName() exposes.
func newTask(fn any, argObjs []any, funcHasher FuncHasher, hasDefault bool, defaultVal any, label string) (*Task, error) {
	futs := make([]HashedFuture, len(argObjs))
	for i, a := range argObjs {
		if f, ok := a.(HashedFuture); ok {
			futs[i] = f
			continue
		}
		tm, err := TemplateFromObject(a)
		if err != nil {
			return nil, err
		}
		futs[i] = tm
	}

	fnHash, err := funcHasher(fn)
	if err != nil {
		return nil, wrap(ErrHashing, "%v", err)
	}
	fnName := fullName(fn)
	specParts := make([]any, 0, len(futs)+1)
	specParts = append(specParts, string(fnHash))
	for _, f := range futs {
		specParts = append(specParts, string(f.Hashid()))
	}
	specStr, _, err := defaultCodec.Encode(specParts)
	if err != nil {
		return nil, err
	}

	t := &Task{
		fn:         fn,
		fnName:     fnName,
		fnHash:     fnHash,
		args:       futs,
		specStr:    specStr,
		hashid:     hashText([]byte(specStr)),
		hasDefault: hasDefault,
		defaultVal: defaultVal,
		label:      label,
	}
	t.core.init(t, futs)
	return t, nil
}

func (t *Task) Hashid() Hash { return t.hashid }
func (t *Task) Spec() string { return t.specStr }
func (t *Task) Label() string { return t.label }

// FuncName is the human-readable identity of the task's function,
// independent of whatever FuncHasher computed its hashid contribution.
func (t *Task) FuncName() string { return t.fnName }
func (t *Task) Args() []HashedFuture {
	out := make([]HashedFuture, len(t.args))
	copy(out, t.args)
	return out
}

// Register recurses into its arguments, same as Template: spec.md §4.2
// singles out Task and Template (not Indexor) as the two variants whose
// Register wires the whole upstream graph in one call,
// so that a freshly created root task arrives at eval with every
// ancestor already registered.
func (t *Task) Register() bool {
	first := t.core.register()
	if first {
		for _, p := range t.core.pending {
			p.Register()
		}
	}
	return first
}

// Ready is false while the task sits in HAS_RUN: its own arguments are
// all done, but it has already run once and is waiting on the future it
// chained to, so the scheduler must not run it a second time (spec.md
// §4.3: "a task in HAS_RUN reports itself as not-ready to the
// scheduler but remains in the graph").
func (t *Task) Ready() bool {
	if t.futureResult != nil && !t.core.Done() {
		return false
	}
	return t.core.Ready()
}
func (t *Task) Pending() []HashedFuture { return t.core.Pending() }

func (t *Task) AddChild(child HashedFuture)            { t.core.AddChild(child) }
func (t *Task) ParentDone(parentHashid Hash)           { t.core.ParentDone(parentHashid) }
func (t *Task) AddReadyCallback(cb func(HashedFuture)) { t.core.AddReadyCallback(cb) }
func (t *Task) AddDoneCallback(cb func(HashedFuture))  { t.core.AddDoneCallback(cb) }

// Done is true only once the task itself holds a result: HAS_RUN (the
// function ran but its returned future is still pending) is not Done.
func (t *Task) Done() bool { return t.core.Done() }

// State overlays HAS_RUN on top of the base state machine: a task that
// has run but is chained to a not-yet-done future reports HAS_RUN
// rather than READY, even though core.Ready() is still true (nothing
// about the task's own arguments is pending any more).
func (t *Task) State() State {
	if t.futureResult != nil && !t.core.Done() {
		return StateHasRun
	}
	return t.core.baseState()
}

func (t *Task) HasRun() bool { return t.futureResult != nil || t.core.Done() }

// Default returns the advisory default configured on this task via
// calc.WithDefault, if any. Session.RunTask's allowUnfinished path uses
// this so a task's own configured default is what a partial evaluation
// sees, rather than always falling back to nil.
func (t *Task) Default() (value any, ok bool) { return t.defaultVal, t.hasDefault }

// FutureResult returns the future this task chained to, once it has
// run and before that future has resolved into the task's own result.
func (t *Task) FutureResult() (HashedFuture, error) {
	if t.core.Done() {
		return nil, wrap(ErrTaskIsDone, "%s", t.hashid)
	}
	if t.futureResult == nil {
		return nil, wrap(ErrTaskHasNotRun, "%s", t.hashid)
	}
	return t.futureResult, nil
}

func (t *Task) SetFutureResult(fut HashedFuture) { t.futureResult = fut }

// SetResult clears any pending chain: once a task holds a final result,
// whatever future it had been waiting on is no longer relevant to it.
func (t *Task) SetResult(v any) {
	t.futureResult = nil
	t.core.SetResult(v)
}

func (t *Task) Result() (any, error) { return t.core.Result() }

// ResultOrDefault implements default_result (spec.md §4.3): a task
// chained to a not-yet-done future (HAS_RUN) delegates to that future's
// own ResultOrDefault rather than handing back the raw default, so a
// default set on the inner future is still honored; only a task that
// hasn't run at all falls back to the plain default value.
func (t *Task) ResultOrDefault(def any) any {
	return t.core.ResultOrDefault(def, func(d any) any {
		if t.futureResult != nil {
			return t.futureResult.ResultOrDefault(d)
		}
		return d
	})
}

// Index builds an Indexor rooted at this task, letting a rule's return
// value be projected into before the task itself has run (spec.md
// §4.4's Task[key] sugar).
func (t *Task) Index(key any) *Indexor {
	return newIndexor(t, []any{key})
}

// invoke calls fn with the already-resolved argument values, supporting
// the two shapes every rule in this engine may take: func(...) T and
// func(...) (T, error). Rule parameters are declared as `any` so a
// caller's int/float64 arguments never trip reflect's strict
// assignability checks.
func (t *Task) invoke(args []any) (any, error) {
	fv := reflect.ValueOf(t.fn)
	ft := fv.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		av := reflect.ValueOf(a)
		if i < ft.NumIn() && av.Type().AssignableTo(ft.In(i)) {
			in[i] = av
		} else if i < ft.NumIn() && av.Type().ConvertibleTo(ft.In(i)) {
			in[i] = av.Convert(ft.In(i))
		} else {
			in[i] = av
		}
	}
	out := fv.Call(in)
	switch len(out) {
	case 1:
		return out[0].Interface(), nil
	case 2:
		errv := out[1].Interface()
		if errv == nil {
			return out[0].Interface(), nil
		}
		return out[0].Interface(), errv.(error)
	default:
		panic("calc: rule functions must return (T) or (T, error)")
	}
}
