// Package async provides panic-safe background execution for the portal.
//
// SafeGo runs a one-off task such as the background session bootstrap:
//
//	ready := async.SafeGo(ctx, 30*time.Second, "session bootstrap", mgr.Bootstrap)
//
// Trigger coalesces bursts of notifications into serialized runs, as used for
// token file change events:
//
//	sync := async.NewTrigger(ctx, "session sync", 10*time.Second, mgr.Sync)
//	store.Watch(ctx, sync.Fire)
//
// Batch fans work out over a bounded number of goroutines.
package async
