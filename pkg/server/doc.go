// Package server is the session runtime: it accepts WebSocket
// connections, runs one Session per client, and keeps each session's
// URL bindings in sync with the client's address bar.
//
// A Session owns a history.Memory mirror of the client's URL, seeded
// from the handshake. Bindings created through Session.Bind write
// against that mirror; every committed write is also queued as a
// Commit frame and delivered to the client, which applies it to the
// real history facility and acknowledges it. Navigation the client
// performs on its own (back, forward, links) arrives as Navigate
// frames; the session updates its mirror and refreshes registered
// bindings without committing anything back.
//
// Event handlers are registered by name and run one at a time on the
// session's event loop, so handler code can use bindings without
// locking:
//
//	srv := server.New(&server.ServerConfig{
//		OnSession: func(sess *server.Session) {
//			tag := sess.Bind("tag", querystring.Absent)
//			sess.HandleEvent("filter.select", func(c server.Ctx, value string) error {
//				tag.SetString(value)
//				return nil
//			})
//		},
//	})
//	log.Fatal(srv.Run(context.Background()))
//
// Sessions detach when their connection drops and can be resumed
// within the manager's resume window; missed commits are replayed from
// a per-session buffer. With a sessionstore.Store configured,
// snapshots survive process restarts.
package server
