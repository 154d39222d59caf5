package calc

import (
	"fmt"
	"strings"
)

// Indexor is a deferred projection into another task's result: it
// becomes ready once its root task is done, then resolves by walking
// the key path over the task's result.
type Indexor struct {
	core futureCore

	task   *Task
	keys   []any
	hashid Hash
}

// newIndexor builds an Indexor rooted at task. Indexing an Indexor
// shares the same root task and simply extends the key path, so this
// constructor is also what Indexor.Index uses.
func newIndexor(task *Task, keys []any) *Indexor {
	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, "@"+string(task.Hashid()))
	for _, k := range keys {
		parts = append(parts, fmt.Sprint(k))
	}
	ix := &Indexor{task: task, keys: keys, hashid: Hash(strings.Join(parts, "/"))}
	ix.core.init(ix, []HashedFuture{task})
	ix.core.AddReadyCallback(func(self HashedFuture) {
		ix.core.SetResult(ix.resolve())
	})
	return ix
}

// Index returns a new Indexor with key appended to the path, rooted at
// the same underlying task.
func (ix *Indexor) Index(key any) *Indexor {
	keys := make([]any, len(ix.keys)+1)
	copy(keys, ix.keys)
	keys[len(ix.keys)] = key
	return newIndexor(ix.task, keys)
}

// Task returns the root task this indexor ultimately projects out of.
func (ix *Indexor) Task() *Task { return ix.task }

func (ix *Indexor) Hashid() Hash { return ix.hashid }
func (ix *Indexor) Spec() string { return string(ix.hashid) }

func (ix *Indexor) Register() bool                         { return ix.core.register() }
func (ix *Indexor) Ready() bool                             { return ix.core.Ready() }
func (ix *Indexor) Done() bool                              { return ix.core.Done() }
func (ix *Indexor) State() State                            { return ix.core.baseState() }
func (ix *Indexor) Pending() []HashedFuture                 { return ix.core.Pending() }
func (ix *Indexor) AddChild(child HashedFuture)             { ix.core.AddChild(child) }
func (ix *Indexor) ParentDone(parentHashid Hash)            { ix.core.ParentDone(parentHashid) }
func (ix *Indexor) AddReadyCallback(cb func(HashedFuture))  { ix.core.AddReadyCallback(cb) }
func (ix *Indexor) AddDoneCallback(cb func(HashedFuture))   { ix.core.AddDoneCallback(cb) }
func (ix *Indexor) SetResult(v any) { ix.core.SetResult(v) }

// Result recomputes the projection on every call instead of returning a
// cached value. core.Done() still gates readiness and still drives the
// done-callback cascade for anything depending on this Indexor (a
// Template that embeds it); only the returned value is always freshly
// walked off the root task's current result.
func (ix *Indexor) Result() (any, error) {
	if !ix.core.Done() {
		return nil, wrap(ErrFutureNotDone, "%s", ix.hashid)
	}
	return ix.resolve(), nil
}

func (ix *Indexor) ResultOrDefault(def any) any {
	if ix.core.Done() {
		return ix.resolve()
	}
	return def
}

// resolve walks the root task's result by the key path. An invalid key
// path (wrong container type, missing key, out-of-range index) panics:
// it names a mismatch between a rule's declared output shape and how
// another rule indexes into it, which is a graph-construction bug, not
// a runtime condition spec.md's error taxonomy models.
func (ix *Indexor) resolve() any {
	obj, err := ix.task.Result()
	if err != nil {
		panic("calc: indexor resolved before its root task: " + err.Error())
	}
	for _, k := range ix.keys {
		switch container := obj.(type) {
		case map[string]any:
			v, ok := container[fmt.Sprint(k)]
			if !ok {
				panic(fmt.Sprintf("calc: missing key %v indexing a map", k))
			}
			obj = v
		case []any:
			idx, ok := k.(int)
			if !ok {
				panic(fmt.Sprintf("calc: non-integer key %v (%T) indexing a list", k, k))
			}
			obj = container[idx]
		default:
			panic(fmt.Sprintf("calc: cannot index into %T with key %v", obj, k))
		}
	}
	return obj
}
