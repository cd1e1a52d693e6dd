// Package compute turns raw detector totals into impacts.
//
// Engine keeps the previous scrape per detector and bump. Process returns
// one Impact per bump whose vehicle or damage counter grew, which the
// shipper forwards to bumpwatch-server. Counter resets after a detector
// restart are handled; the first scrape of a bump only sets its baseline.
// Process takes the clock as a parameter so tests are deterministic.
package compute
