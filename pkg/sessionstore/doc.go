// Package sessionstore provides pluggable persistence for session snapshots.
//
// A snapshot captures everything needed to resume a detached session: the
// URL the session's history mirror was parked at, the resolved values of its
// bound query parameters, and the commit sequence number. Snapshots are
// small JSON documents, so every backend stores them as opaque bytes.
//
// # Backends
//
// The Store interface defines the contract:
//
//	store := sessionstore.NewMemoryStore()
//	// or
//	store := sessionstore.NewSQLStore(db, sessionstore.WithSQLDialect(sessionstore.DialectPostgreSQL))
//	// or
//	store := sessionstore.NewRedisStore(redisClient)
//	// or
//	store := sessionstore.NewS3Store(s3Client, "my-bucket")
//
// # Snapshots
//
// Snapshots round-trip through EncodeSnapshot/DecodeSnapshot:
//
//	data, err := sessionstore.EncodeSnapshot(&sessionstore.Snapshot{
//	    ID:  sess.ID(),
//	    URL: sess.Location(),
//	    Seq: sess.Seq(),
//	})
//	// Later...
//	snap, err := sessionstore.DecodeSnapshot(data)
package sessionstore
