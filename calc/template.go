package calc

// Template is a JSON value whose "holes" are futures (spec.md §3, §4.5).
// It becomes ready once every embedded future is ready and immediately
// substitutes their results into its own, collapsing to DONE in the
// very same call if it was constructed with no embedded futures at all.
type Template struct {
	core futureCore

	jsonstr       string
	futuresByHash map[Hash]HashedFuture
	hashid        Hash
}

// TemplateFromObject implements Template.from_object (spec.md §4.1): it
// walks obj with the default codec (which recognises Task and Indexor),
// producing a canonical JSON string and the tape of futures embedded in
// it, then wraps both in a Template.
func TemplateFromObject(obj any) (*Template, error) {
	if _, ok := obj.(HashedFuture); ok {
		return nil, wrap(ErrComposite, "from_object called directly on a future of type %T", obj)
	}
	jsonstr, tape, err := defaultCodec.Encode(obj)
	if err != nil {
		return nil, err
	}
	futures := make([]HashedFuture, 0, len(tape))
	for _, f := range tape {
		futures = append(futures, f.(HashedFuture))
	}
	return newTemplate(jsonstr, futures), nil
}

func newTemplate(jsonstr string, futures []HashedFuture) *Template {
	byHash := make(map[Hash]HashedFuture, len(futures))
	for _, f := range futures {
		byHash[f.Hashid()] = f
	}
	tm := &Template{
		jsonstr:       jsonstr,
		futuresByHash: byHash,
		hashid:        Hash("{}" + string(hashText([]byte(jsonstr)))),
	}
	tm.core.init(tm, futures)
	tm.core.AddReadyCallback(func(self HashedFuture) {
		v, err := tm.substitute(false, nil)
		if err != nil {
			// Every embedded future is done by construction of this
			// callback (it only fires once the template is Ready), so
			// substitution without a default cannot legitimately fail.
			panic("calc: template substitution failed on a ready template: " + err.Error())
		}
		tm.core.SetResult(v)
	})
	return tm
}

func (tm *Template) Hashid() Hash { return tm.hashid }
func (tm *Template) Spec() string { return tm.jsonstr }

func (tm *Template) Register() bool {
	first := tm.core.register()
	if first {
		for _, p := range tm.core.pending {
			p.Register()
		}
	}
	return first
}

func (tm *Template) Ready() bool                          { return tm.core.Ready() }
func (tm *Template) Done() bool                           { return tm.core.Done() }
func (tm *Template) State() State                         { return tm.core.baseState() }
func (tm *Template) Pending() []HashedFuture               { return tm.core.Pending() }
func (tm *Template) AddChild(child HashedFuture)            { tm.core.AddChild(child) }
func (tm *Template) ParentDone(parentHashid Hash)           { tm.core.ParentDone(parentHashid) }
func (tm *Template) AddReadyCallback(cb func(HashedFuture)) { tm.core.AddReadyCallback(cb) }
func (tm *Template) AddDoneCallback(cb func(HashedFuture))  { tm.core.AddDoneCallback(cb) }
func (tm *Template) SetResult(v any)                        { tm.core.SetResult(v) }
func (tm *Template) Result() (any, error)                   { return tm.core.Result() }

// ResultOrDefault delegates to the variant-specific default_result,
// here Template.substitute run with the supplied default.
func (tm *Template) ResultOrDefault(def any) any {
	return tm.core.ResultOrDefault(def, tm.defaultResult)
}

func (tm *Template) defaultResult(def any) any {
	v, err := tm.substitute(true, def)
	if err != nil {
		// default is advisory only (spec.md §9 Open Question (c)): if
		// even the default-aware substitution can't proceed, fall back
		// to the raw default rather than surfacing an error here.
		return def
	}
	return v
}

// Futures returns every future embedded directly in this template,
// regardless of whether it has completed yet. Session.Eval and
// Session.checkArgsReachable use this to walk a graph built from an
// arbitrary Go value down to its concrete Task nodes.
func (tm *Template) Futures() []HashedFuture {
	out := make([]HashedFuture, 0, len(tm.futuresByHash))
	for _, f := range tm.futuresByHash {
		out = append(out, f)
	}
	return out
}

// HasFutures reports whether this template embeds any future at all. A
// future-free template collapses to DONE synchronously at construction
// (its ready callback fires immediately, see newTemplate), so this is
// mostly useful for introspection/logging rather than control flow.
func (tm *Template) HasFutures() bool { return len(tm.futuresByHash) > 0 }

// substitute is Template.substitute (spec.md §4.1): parse jsonstr and
// replace every tagged Task/Indexor object with its future's result (or,
// if hasDefault, its default_result).
func (tm *Template) substitute(hasDefault bool, def any) (any, error) {
	resolve := func(payload map[string]any) (any, error) {
		hid, _ := payload["hashid"].(string)
		fut, ok := tm.futuresByHash[Hash(hid)]
		if !ok {
			return nil, wrap(ErrComposite, "template references unknown future %s", hid)
		}
		if fut.Done() {
			return fut.Result()
		}
		if hasDefault {
			return fut.ResultOrDefault(def), nil
		}
		return nil, wrap(ErrFutureNotDone, "%s", hid)
	}
	decoders := map[string]ClassDecoder{
		"Task":    resolve,
		"Indexor": resolve,
	}
	return defaultCodec.Decode(tm.jsonstr, decoders)
}
