// Package export writes record snapshots to a local file or an S3 object.
//
// Destinations are either a filesystem path, written atomically so readers
// never see a partial file, or s3://bucket/key, uploaded with PutObject using
// the default AWS credential chain.
package export
