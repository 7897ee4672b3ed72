// Package state holds the process-wide stores the views read from.
//
// # Stores
//
// Readings mirrors the readings feed. It opens one subscription when the
// runtime starts and folds every push into a ReadingSnapshot:
//
//	non-empty push      → Latest replaced, Err cleared
//	empty push          → Latest kept, Err = ErrNoData
//	subscription error  → Latest kept, Err = ErrConnectionFailed
//	subscribe fails     → Err = ErrSetupFailed
//
// Loading is true only until the first of these happens.
//
// Identity mirrors the signed-in user. Ready flips once, on the first
// announcement from the identity source, and never resets.
//
// # Concurrency
//
// Each store has a single writer, its own subscription handler, guarded by
// an RWMutex. Readers call Snapshot, which returns a value; Reading payloads
// are private to the backend package so nothing a reader holds can change
// under it. Changed hands out a channel that is closed on the next update:
//
//	for {
//		changed := store.Changed()
//		render(store.Snapshot())
//		<-changed
//	}
//
// Subscriptions end only when the context passed to Open is cancelled.
package state
