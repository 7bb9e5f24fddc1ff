// Package querystring implements the pure query-string side of URL
// parameter synchronization.
//
// The package is a deterministic string transform with no I/O: given the
// current URL, a parameter key, a requested value, and options, Resolve
// produces the resulting URL and the resolved parameter value. Bindings
// (package binding) and the session runtime (package server) are built on
// top of it; tests can exercise it directly because nothing here touches
// navigation state.
//
// A requested value is a tri-state Value: Absent reads the parameter
// without modifying the URL, Null requests deletion, and String(s)
// requests a write. The three states make the resolution branches
// explicit and exhaustive:
//
//	querystring.Resolve("/blog?tag=js", "tag", querystring.Absent, querystring.ResolveOptions{})
//	// → Result{URL: "/blog?tag=js", Value: Resolved{Value: "js", Present: true}}
//
//	querystring.Resolve("/blog?tag=js", "tag", querystring.String("go"), querystring.ResolveOptions{})
//	// → Result{URL: "/blog?tag=go", Value: Resolved{Value: "go", Present: true}}
//
//	querystring.Resolve("/blog?tag=js", "tag", querystring.Null, querystring.ResolveOptions{})
//	// → Result{URL: "/blog", Value: Resolved{}}
//
// Resolve is total: malformed input is processed permissively
// (garbage-in/garbage-out) and never reported as an error. Unrelated
// parameters round-trip with their values and relative order intact.
package querystring
