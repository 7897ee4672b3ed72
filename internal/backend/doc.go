// Package backend talks to the hosted services behind the weather station:
// the realtime database that stores sensor_logs and the identity service that
// signs users in.
//
// # Streaming queries
//
// Client.Subscribe opens a REST streaming request (text/event-stream) for a
// Query such as "last record of sensor_logs ordered by timestamp". The server
// sends put and patch events relative to the query root; the subscription
// folds them into a local child map and emits the full query result as a
// Snapshot after every event, so consumers never deal with partial updates.
//
// Transport failures are emitted as error events and the subscription
// reconnects with exponential backoff. A cancel event (or a 401/403 when
// connecting) ends the subscription with ErrStreamCancelled.
//
// # Identity
//
// Auth mirrors the signed-in user. Start restores the persisted session,
// refreshing its ID token when needed, and then announces the resolved state
// to every listener registered with OnAuthStateChanged. Sign-in and sign-out
// announce again. Sessions are persisted through a SessionStore; FileSessions
// keeps them in a TOML file.
package backend
