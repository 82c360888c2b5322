// Package async provides utilities for parallel task execution with
// error collection.
//
// The [RunParallel] function executes independent operations with a bounded
// number in flight and returns all errors. It is used to refresh recorded
// resources before planning.
package async
