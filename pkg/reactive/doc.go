// Package reactive provides a small thread-safe signal primitive.
//
// A Signal[T] holds a value, notifies subscribers when it changes, and
// suppresses notifications for writes that leave the value equal to
// what it was. Subscriptions are explicit: callers register a callback
// with Subscribe and cancel it with the returned function. There is no
// implicit dependency tracking.
package reactive
