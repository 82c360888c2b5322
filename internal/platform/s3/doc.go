// Package s3 provides a client for S3 and S3-compatible object storage.
//
// It is used by the s3 state backend to read and write the state document
// and to take the state lock with a conditional write. Custom endpoints and
// path-style addressing are supported for S3-compatible stores.
package s3
