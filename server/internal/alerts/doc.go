// Package alerts evaluates per-record rules whenever a speed bump changes
// and notifies Slack, Teams or generic HTTP webhooks when a rule fires or
// resolves. A Sweep re-evaluates the whole table on a timer so rules that
// depend on elapsed time fire without a write. Rules and webhooks can be
// replaced at runtime with SetConfig.
package alerts
