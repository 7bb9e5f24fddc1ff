package binding

// Mode selects how a commit lands in session history.
type Mode int

const (
	// ModeReplace overwrites the current history entry. This is the
	// default: parameter tweaks like filters and search terms should
	// not pile up behind the back button.
	ModeReplace Mode = iota

	// ModePush adds a new history entry, so back navigation returns
	// to the previous parameter state.
	ModePush
)

func (m Mode) String() string {
	if m == ModePush {
		return "push"
	}
	return "replace"
}

// Options is the binding configuration. The zero value is the default
// behavior: replace commits, Null deletes the parameter.
type Options struct {
	// Mode selects push or replace commits.
	Mode Mode

	// KeepNull disables delete-on-null: a Null write degrades to a
	// read instead of removing the parameter.
	KeepNull bool
}

// Option adjusts Options. Options passed to Bind configure the
// binding; options passed to Set override the bound configuration for
// that single call, field by field.
type Option interface {
	apply(*Options)
}

var (
	// Push commits with a new history entry.
	Push Option = modeOption{ModePush}

	// Replace commits over the current history entry (the default).
	Replace Option = modeOption{ModeReplace}

	// KeepNull makes a Null write degrade to a read.
	KeepNull Option = keepNullOption{true}

	// DeleteOnNull restores delete-on-null, overriding a binding
	// bound with KeepNull for one call.
	DeleteOnNull Option = keepNullOption{false}
)

type modeOption struct{ mode Mode }

func (o modeOption) apply(c *Options) { c.Mode = o.mode }

type keepNullOption struct{ keep bool }

func (o keepNullOption) apply(c *Options) { c.KeepNull = o.keep }

// WithMode returns an option selecting mode dynamically.
func WithMode(mode Mode) Option { return modeOption{mode} }

// merge copies base and applies each option over it. Application is
// per-field: a call naming only the mode keeps the bound KeepNull, and
// vice versa. Set runs a fresh merge on every call, so one call's
// overrides never leak into the next.
func merge(base Options, opts []Option) Options {
	for _, opt := range opts {
		opt.apply(&base)
	}
	return base
}
