// Package binding bridges a single URL query parameter to a reactive
// in-memory value.
//
// A binding is created once per consumer and key:
//
//	h := history.NewMemory("/blog")
//	tag := binding.Bind(h, "tag", querystring.Absent)
//
//	tag.Get()                // not present: /blog has no tag
//	tag.SetString("science") // URL becomes /blog?tag=science
//	tag.Clear()              // URL becomes /blog again
//
// Bind reads the URL exactly once and never commits, so mounting is
// invisible to history. Set commits on every call; the commit mode and
// null handling come from the bound options, overridable per call:
//
//	tag := binding.Bind(h, "tag", querystring.Absent, binding.Push)
//	tag.SetString("css")                 // push, per the binding
//	tag.SetString("js", binding.Replace) // replace, this call only
//
// The URL itself is reached only through the history.History port, so
// tests run against history.Memory and servers against an adapter that
// forwards commits to a connected client.
package binding
