// Package refresh implements the polling loop that keeps a live view of the
// record list current.
//
// A Poller is either Idle or Fetching. It starts a fetch when it is mounted
// (Run begins), whenever Trigger is called (filter change, explicit refresh,
// invalidation after a write) and on every timer tick. A trigger that
// arrives while a fetch is in flight starts another fetch; fetches are not
// coordinated. Results are delivered in sequence order: a result older than
// one already delivered is discarded, so a slow response can never overwrite
// a newer one. Cancelling Run's context unmounts the view: the timer stops,
// in-flight fetches see a cancelled context, and nothing is delivered after
// Run returns.
package refresh
