package querystring

import (
	"fmt"
	"strconv"
)

type valueKind uint8

const (
	kindAbsent valueKind = iota
	kindNull
	kindString
)

// Value is a requested parameter value. It distinguishes three states
// that a plain string cannot: Absent (read-only, leave the URL alone),
// Null (delete the parameter, subject to ResolveOptions.KeepNull), and
// a concrete string produced by String or Stringify.
//
// The zero Value is Absent.
type Value struct {
	kind valueKind
	str  string
}

// Absent reads the current parameter without modifying the URL.
var Absent = Value{kind: kindAbsent}

// Null requests deletion of the parameter. With ResolveOptions.KeepNull
// set it degrades to a read, exactly like Absent.
var Null = Value{kind: kindNull}

// String returns a Value that writes s as the parameter value. The
// empty string is a real value: it writes "key=" rather than deleting.
func String(s string) Value {
	return Value{kind: kindString, str: s}
}

// Stringify converts v to a string Value the way fmt would print it.
// nil maps to Null. It exists for callers carrying dynamic values;
// typed code should prefer String.
func Stringify(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case string:
		return String(x)
	case fmt.Stringer:
		return String(x.String())
	case bool:
		return String(strconv.FormatBool(x))
	case int:
		return String(strconv.Itoa(x))
	case int64:
		return String(strconv.FormatInt(x, 10))
	case uint64:
		return String(strconv.FormatUint(x, 10))
	case float64:
		return String(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return String(fmt.Sprint(x))
	}
}

// IsAbsent reports whether v is the Absent state.
func (v Value) IsAbsent() bool { return v.kind == kindAbsent }

// IsNull reports whether v is the Null state.
func (v Value) IsNull() bool { return v.kind == kindNull }

// Get returns the string payload and whether v carries one. Absent and
// Null return ("", false).
func (v Value) Get() (string, bool) {
	if v.kind != kindString {
		return "", false
	}
	return v.str, true
}

func (v Value) String() string {
	switch v.kind {
	case kindAbsent:
		return "querystring.Absent"
	case kindNull:
		return "querystring.Null"
	default:
		return strconv.Quote(v.str)
	}
}

// Resolved is the parameter value after resolution. Present is false
// when the parameter does not appear in the resulting URL, in which
// case Value is empty. A parameter present with an empty value
// ("?flag=") resolves to Resolved{Value: "", Present: true}.
type Resolved struct {
	Value   string
	Present bool
}

// Or returns the resolved value, or def when the parameter is absent.
func (r Resolved) Or(def string) string {
	if !r.Present {
		return def
	}
	return r.Value
}
