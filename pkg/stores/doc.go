// Package stores persists modelling sessions.
//
// SQLiteStore keeps one row per session and one row per emitted command,
// with schema migrations embedded in the binary and applied by Migrate.
// TranscriptSink plugs the store into a recording backend so every command
// the session emits is kept in order; Lines reads the transcript back for
// export or replay.
//
// RedisSink writes the same lines to a Redis list when several processes
// need to follow a session as it is built.
package stores
