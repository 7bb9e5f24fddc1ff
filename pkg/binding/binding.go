package binding

import (
	"github.com/urlbind-dev/urlbind/pkg/history"
	"github.com/urlbind-dev/urlbind/pkg/querystring"
	"github.com/urlbind-dev/urlbind/pkg/reactive"
)

// Binding keeps one query parameter and an in-memory value in sync.
//
// The held value is the source of truth for consumers; it is derived
// from the URL once at bind time and from then on only by Set, Update,
// Clear, and Refresh. Every Set re-derives the URL through
// querystring.Resolve and commits it to the bound History, so after
// any Set the URL and the held value agree exactly.
//
// A Binding has no locking of its own: it is meant for the
// single-writer callback model where one event at a time mutates
// state. Two bindings on the same key are not coordinated; the last
// writer wins and the other holds a stale value until its next
// Refresh.
type Binding struct {
	h    history.History
	key  string
	opts Options

	state *reactive.Signal[querystring.Resolved]
}

// Bind resolves the starting value of key against h.Location() and
// returns a live binding.
//
// The initial value passes through the same resolution as a write:
// Absent adopts whatever the URL currently carries, String(s) makes s
// the starting value even when the URL disagrees, and Null starts
// empty. Bind never commits to h — construction is read-only with
// respect to history, so mounting a consumer cannot corrupt the
// current entry.
//
// An empty key is accepted and produces a vacuous "=value" query entry
// on write; callers are expected to pass real parameter names.
func Bind(h history.History, key string, initial querystring.Value, opts ...Option) *Binding {
	o := merge(Options{}, opts)
	res := querystring.Resolve(h.Location(), key, initial, resolveOptions(o))
	return &Binding{
		h:     h,
		key:   key,
		opts:  o,
		state: reactive.NewSignal(res.Value),
	}
}

// Key returns the bound query parameter name.
func (b *Binding) Key() string { return b.key }

// Get returns the current bound value.
func (b *Binding) Get() querystring.Resolved {
	return b.state.Get()
}

// Set writes v to the URL and returns the new bound value.
//
// Per-call options override the bound options for this call only,
// field by field. The resulting URL is always committed to history,
// replace or push per the merged mode; the held value updates after
// the commit and subscribers run when it changed.
func (b *Binding) Set(v querystring.Value, opts ...Option) querystring.Resolved {
	merged := merge(b.opts, opts)
	res := querystring.Resolve(b.h.Location(), b.key, v, resolveOptions(merged))

	if merged.Mode == ModePush {
		b.h.Push(res.URL)
	} else {
		b.h.Replace(res.URL)
	}

	b.state.Set(res.Value)
	return res.Value
}

// SetString writes s as the parameter value.
func (b *Binding) SetString(s string, opts ...Option) querystring.Resolved {
	return b.Set(querystring.String(s), opts...)
}

// Clear deletes the parameter from the URL.
func (b *Binding) Clear(opts ...Option) querystring.Resolved {
	return b.Set(querystring.Null, opts...)
}

// Update derives the next value from the current one and writes it.
func (b *Binding) Update(fn func(querystring.Resolved) querystring.Value, opts ...Option) querystring.Resolved {
	return b.Set(fn(b.Get()), opts...)
}

// Refresh re-reads the parameter from the current URL without a
// commit and returns it. The session runtime calls this after
// external navigation (back, forward, link) so bound values follow
// the URL they no longer control.
func (b *Binding) Refresh() querystring.Resolved {
	res := querystring.Resolve(b.h.Location(), b.key, querystring.Absent, resolveOptions(b.opts))
	b.state.Set(res.Value)
	return res.Value
}

// Subscribe registers fn to run whenever the bound value changes. The
// returned cancel removes the subscription.
func (b *Binding) Subscribe(fn func(querystring.Resolved)) func() {
	return b.state.Subscribe(fn)
}

func resolveOptions(o Options) querystring.ResolveOptions {
	return querystring.ResolveOptions{KeepNull: o.KeepNull}
}
