package calc

// Rule wraps a plain Go function as a task constructor bound to fixed
// options (spec.md §3's Rule): calling it creates or dedups a Task on
// the currently active session rather than running the function
// directly.
type Rule struct {
	fn   any
	opts []TaskOption
}

// NewRule binds fn with a fixed set of options, applied to every task
// the rule creates (spec.md §4.6: a rule's label/default are rule-wide,
// not per-call).
func NewRule(fn any, opts ...TaskOption) *Rule {
	return &Rule{fn: fn, opts: opts}
}

// Call creates (or looks up) the Task for fn applied to args, on the
// currently active session.
func (r *Rule) Call(args ...any) (*Task, error) {
	s, err := ActiveSession()
	if err != nil {
		return nil, err
	}
	return s.CreateTask(r.fn, args, r.opts...)
}

// WithLabel attaches a human-readable label to every task the rule (or
// a single CreateTask call) produces; purely descriptive, never part of
// a task's hashid.
func WithLabel(label string) TaskOption {
	return func(o *taskOptions) { o.label = label }
}

// WithDefault stores an advisory default on the task (Task.Default);
// Session.RunTask passes it to ResultOrDefault when it returns before the
// task is done. ResultOrDefault itself uses only the default its caller
// passes (spec.md §9 Open Question (c): the default is advisory only,
// never treated as a substitute completion).
func WithDefault(def any) TaskOption {
	return func(o *taskOptions) {
		o.hasDefault = true
		o.defaultVal = def
	}
}
