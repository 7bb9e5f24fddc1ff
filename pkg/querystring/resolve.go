package querystring

// ResolveOptions adjusts how Resolve treats a Null request.
//
// The zero value is the default behavior: Null deletes the parameter.
// With KeepNull set, Null is not specially interpreted and degrades to
// a read, exactly like Absent. The literal string "null" is never
// written either way.
type ResolveOptions struct {
	KeepNull bool
}

// Result is the outcome of a Resolve call.
type Result struct {
	// URL is the resulting URL. It equals the input URL when the
	// request was a read.
	URL string

	// Value is the parameter value as it stands in URL.
	Value Resolved
}

// Resolve reads or writes the parameter key in rawURL and returns the
// resulting URL together with the resolved value.
//
// The request branches on the tri-state of req:
//
//   - Absent: read key from the current query. The URL is returned
//     unchanged, byte for byte.
//   - Null: delete key and re-serialize. Under opts.KeepNull this
//     branch degrades to a read.
//   - String(s): set key to s and re-serialize.
//
// Re-serialization keeps every other parameter's value and relative
// order, omits the "?" when the query ends up empty, and strips one
// trailing slash from the path (a bare root "/" is kept). Resolve is
// total: malformed URLs are handled permissively and never rejected.
func Resolve(rawURL, key string, req Value, opts ResolveOptions) Result {
	base, rawQuery, fragment := SplitURL(rawURL)
	q := ParseQuery(rawQuery)

	if req.IsAbsent() || (req.IsNull() && opts.KeepNull) {
		v, ok := q.Get(key)
		return Result{URL: rawURL, Value: Resolved{Value: v, Present: ok}}
	}

	var resolved Resolved
	if req.IsNull() {
		q.Delete(key)
	} else {
		s, _ := req.Get()
		q.Set(key, s)
		resolved = Resolved{Value: s, Present: true}
	}
	return Result{URL: joinURL(base, q.Encode(), fragment), Value: resolved}
}
